package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"chatrelay/internal/constants"
	apperrors "chatrelay/internal/errors"
	"chatrelay/internal/migrations"
	"chatrelay/internal/models"
	"chatrelay/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the persistent FIFO of chat messages waiting for a reply.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", dbPath, constants.DefaultDatabaseBusyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Ingestor and dispatcher share one connection so every statement is serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks that the store is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("ping", err)
	}
	return nil
}

// Insert appends a message and returns its sequence id. It does not enforce
// the capacity bound; see Enqueue.
func (d *Database) Insert(ctx context.Context, uniqueID, userID, comment string) (int64, error) {
	stored, err := d.encryptor.Encrypt(comment)
	if err != nil {
		return 0, apperrors.NewStorageError("insert", fmt.Errorf("failed to encrypt comment: %w", err))
	}

	id, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx, InsertCommentQuery, uniqueID, userID, stored)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}, "insert comment")
	if err != nil {
		return 0, apperrors.NewStorageError("insert", err)
	}
	return id, nil
}

// PeekOldest returns the message with the smallest id without removing it,
// or nil when the queue is empty.
func (d *Database) PeekOldest(ctx context.Context) (*models.QueuedMessage, error) {
	msg, err := retryableDBOperation(ctx, func() (*models.QueuedMessage, error) {
		row := d.db.QueryRowContext(ctx, SelectOldestCommentQuery)
		msg, err := d.scanMessage(row)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return msg, err
	}, "peek oldest comment")
	if err != nil {
		return nil, apperrors.NewStorageError("peek", err)
	}
	return msg, nil
}

// ListPending returns up to limit messages, oldest first.
func (d *Database) ListPending(ctx context.Context, limit int) ([]*models.QueuedMessage, error) {
	if limit <= 0 {
		limit = constants.DefaultPendingListMax
	}

	msgs, err := retryableDBOperation(ctx, func() ([]*models.QueuedMessage, error) {
		rows, err := d.db.QueryContext(ctx, SelectPendingCommentsQuery, limit)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		var msgs []*models.QueuedMessage
		for rows.Next() {
			msg, err := d.scanMessage(rows)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
		return msgs, rows.Err()
	}, "list pending comments")
	if err != nil {
		return nil, apperrors.NewStorageError("list", err)
	}
	return msgs, nil
}

// DeleteByID removes the single row with the given sequence id.
func (d *Database) DeleteByID(ctx context.Context, id int64) (int64, error) {
	n, err := d.execAffected(ctx, DeleteCommentByIDQuery, "delete comment by id", id)
	if err != nil {
		return 0, apperrors.NewStorageError("delete by id", err)
	}
	return n, nil
}

// DeleteByUserID removes every row from userID. Zero matches is not an error.
func (d *Database) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	n, err := d.execAffected(ctx, DeleteCommentsByUserIDQuery, "delete comments by user id", userID)
	if err != nil {
		return 0, apperrors.NewStorageError("delete by user id", err)
	}
	return n, nil
}

// CountRows returns the number of queued messages.
func (d *Database) CountRows(ctx context.Context) (int, error) {
	count, err := retryableDBOperation(ctx, func() (int, error) {
		var count int
		err := d.db.QueryRowContext(ctx, CountCommentsQuery).Scan(&count)
		return count, err
	}, "count comments")
	if err != nil {
		return 0, apperrors.NewStorageError("count", err)
	}
	return count, nil
}

// EvictOldestIfOverCapacity deletes the oldest row when the queue holds more
// than capacity rows. At most one row is removed per call.
func (d *Database) EvictOldestIfOverCapacity(ctx context.Context, capacity int) (bool, error) {
	evicted, err := retryableDBOperation(ctx, func() (bool, error) {
		return evictOldest(ctx, d.db, capacity)
	}, "evict oldest comment")
	if err != nil {
		return false, apperrors.NewStorageError("evict", err)
	}
	return evicted, nil
}

// Enqueue inserts a message and enforces the capacity bound in one transaction.
func (d *Database) Enqueue(ctx context.Context, uniqueID, userID, comment string, capacity int) (int64, bool, error) {
	stored, err := d.encryptor.Encrypt(comment)
	if err != nil {
		return 0, false, apperrors.NewStorageError("enqueue", fmt.Errorf("failed to encrypt comment: %w", err))
	}

	type result struct {
		id      int64
		evicted bool
	}

	res, err := retryableDBOperation(ctx, func() (result, error) {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return result{}, fmt.Errorf("failed to begin transaction: %w", err)
		}

		execRes, err := tx.ExecContext(ctx, InsertCommentQuery, uniqueID, userID, stored)
		if err != nil {
			_ = tx.Rollback()
			return result{}, err
		}
		id, err := execRes.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return result{}, err
		}

		evicted, err := evictOldest(ctx, tx, capacity)
		if err != nil {
			_ = tx.Rollback()
			return result{}, err
		}

		if err := tx.Commit(); err != nil {
			return result{}, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return result{id: id, evicted: evicted}, nil
	}, "enqueue comment")
	if err != nil {
		return 0, false, apperrors.NewStorageError("enqueue", err)
	}
	return res.id, res.evicted, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func evictOldest(ctx context.Context, q execQuerier, capacity int) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, CountCommentsQuery).Scan(&count); err != nil {
		return false, err
	}
	if count <= capacity {
		return false, nil
	}

	res, err := q.ExecContext(ctx, DeleteOldestCommentQuery)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Database) execAffected(ctx context.Context, query, operationName string, args ...any) (int64, error) {
	return retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}, operationName)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (d *Database) scanMessage(row rowScanner) (*models.QueuedMessage, error) {
	var (
		msg                        models.QueuedMessage
		uniqueID, userID, rawValue sql.NullString
	)

	if err := row.Scan(&msg.ID, &uniqueID, &userID, &rawValue, &msg.Timestamp); err != nil {
		return nil, err
	}

	comment, err := d.encryptor.Decrypt(rawValue.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt comment %d: %w", msg.ID, err)
	}

	msg.UniqueID = uniqueID.String
	msg.UserID = userID.String
	msg.Comment = comment
	return &msg, nil
}
