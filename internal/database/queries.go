package database

// Comment queue queries
const (
	InsertCommentQuery = `
		INSERT INTO comments (uniqueId, userId, comment)
		VALUES (?, ?, ?)
	`

	SelectOldestCommentQuery = `
		SELECT id, uniqueId, userId, comment, timestamp
		FROM comments
		ORDER BY id ASC
		LIMIT 1
	`

	SelectPendingCommentsQuery = `
		SELECT id, uniqueId, userId, comment, timestamp
		FROM comments
		ORDER BY id ASC
		LIMIT ?
	`

	CountCommentsQuery = `SELECT COUNT(*) FROM comments`

	DeleteCommentByIDQuery = `DELETE FROM comments WHERE id = ?`

	DeleteCommentsByUserIDQuery = `DELETE FROM comments WHERE userId = ?`

	// Removes the single row with the smallest id.
	DeleteOldestCommentQuery = `
		DELETE FROM comments
		WHERE id = (SELECT id FROM comments ORDER BY id ASC LIMIT 1)
	`
)
