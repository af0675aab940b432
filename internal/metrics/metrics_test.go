package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func findFamily(t *testing.T, r *Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestRegistry_IncrementCounter(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter(DispatchCycles, map[string]string{"outcome": "delivered"}, "Dispatch cycles by outcome")
	registry.IncrementCounter(DispatchCycles, map[string]string{"outcome": "delivered"}, "Dispatch cycles by outcome")
	registry.IncrementCounter(DispatchCycles, map[string]string{"outcome": "empty"}, "Dispatch cycles by outcome")

	family := findFamily(t, registry, DispatchCycles)
	if family == nil {
		t.Fatal("expected counter family to exist")
	}
	if family.GetHelp() != "Dispatch cycles by outcome" {
		t.Errorf("unexpected help %q", family.GetHelp())
	}

	values := map[string]float64{}
	for _, m := range family.GetMetric() {
		values[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	if values["delivered"] != 2 {
		t.Errorf("expected delivered=2, got %v", values["delivered"])
	}
	if values["empty"] != 1 {
		t.Errorf("expected empty=1, got %v", values["empty"])
	}
}

func TestRegistry_AddToCounter(t *testing.T) {
	registry := NewRegistry()

	registry.AddToCounter(CompletionTokensUse, 12, nil, "")
	registry.AddToCounter(CompletionTokensUse, 3, nil, "")
	registry.AddToCounter(CompletionTokensUse, -5, nil, "")

	family := findFamily(t, registry, CompletionTokensUse)
	if family == nil {
		t.Fatal("expected counter family to exist")
	}
	if got := family.GetMetric()[0].GetCounter().GetValue(); got != 15 {
		t.Errorf("expected 15, got %v", got)
	}
	if family.GetHelp() != CompletionTokensUse {
		t.Errorf("empty description should fall back to the name, got %q", family.GetHelp())
	}
}

func TestRegistry_MismatchedLabelsAreDropped(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter(SourceReconnects, map[string]string{"source": "twitch"}, "")
	registry.IncrementCounter(SourceReconnects, map[string]string{"other": "x"}, "")

	family := findFamily(t, registry, SourceReconnects)
	if len(family.GetMetric()) != 1 {
		t.Fatalf("expected one series, got %d", len(family.GetMetric()))
	}
}

func TestRegistry_RecordTimer(t *testing.T) {
	registry := NewRegistry()

	registry.RecordTimer(CompletionDuration, 250*time.Millisecond, map[string]string{"model": "gpt-3.5-turbo"}, "")
	registry.RecordTimer(CompletionDuration, 750*time.Millisecond, map[string]string{"model": "gpt-3.5-turbo"}, "")

	family := findFamily(t, registry, CompletionDuration)
	if family == nil {
		t.Fatal("expected histogram family to exist")
	}
	h := family.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.0 {
		t.Errorf("expected sum 1.0s, got %v", h.GetSampleSum())
	}
}

func TestRegistry_SetGauge(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge(QueueDepth, 12, nil, "Queued messages")
	registry.SetGauge(QueueDepth, 7, nil, "Queued messages")

	family := findFamily(t, registry, QueueDepth)
	if family == nil {
		t.Fatal("expected gauge family to exist")
	}
	if got := family.GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Errorf("expected 7, got %v", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	registry := NewRegistry()
	registry.SetGauge(QueueDepth, 3, nil, "Queued messages")

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "chatrelay_queue_depth 3") {
		t.Errorf("expected gauge in output, got:\n%s", body)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				registry.IncrementCounter(MessagesIngested, map[string]string{"source": "websocket"}, "")
			}
		}()
	}
	wg.Wait()

	family := findFamily(t, registry, MessagesIngested)
	if got := family.GetMetric()[0].GetCounter().GetValue(); got != 1000 {
		t.Errorf("expected 1000, got %v", got)
	}
}

func TestGlobalFunctions(t *testing.T) {
	IncrementCounter(MessagesEvicted, nil, "")
	AddToCounter(MessagesEvicted, 2, nil, "")
	SetGauge(SourceConnected, 1, map[string]string{"source": "twitch"}, "")
	RecordTimer(CompletionDuration+"_global_test", time.Second, nil, "")

	if GetRegistry() != globalRegistry {
		t.Fatal("GetRegistry should return the global registry")
	}
	if findFamily(t, GetRegistry(), MessagesEvicted) == nil {
		t.Error("expected global counter to exist")
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
