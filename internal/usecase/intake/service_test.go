package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/cardex/internal/domain"
	dombatch "github.com/kailas-cloud/cardex/internal/domain/batch"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

type mockSource struct {
	mu       sync.Mutex
	payloads map[string][]byte
	order    []string
	listErr  error
	fetchErr error
	acked    []string
	listed   int
}

func (m *mockSource) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var names []string
	for _, n := range m.order {
		if _, ok := m.payloads[n]; ok {
			names = append(names, n)
		}
	}
	return names, nil
}

func (m *mockSource) Fetch(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	p, ok := m.payloads[name]
	if !ok {
		return nil, fmt.Errorf("no such batch %s", name)
	}
	return p, nil
}

func (m *mockSource) Ack(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, name)
	delete(m.payloads, name)
	return nil
}

type mockEnricher struct {
	calls  [][]domcard.Parsed
	err    error
	errFor map[int]error
}

func (m *mockEnricher) Enrich(_ context.Context, items []domcard.Parsed) (dombatch.Summary, error) {
	m.calls = append(m.calls, items)
	if err := m.errFor[len(m.calls)]; err != nil {
		return dombatch.Summary{}, err
	}
	if m.err != nil {
		return dombatch.Summary{}, m.err
	}
	results := make([]dombatch.Result, len(items))
	for i, it := range items {
		results[i] = dombatch.NewOK(it.Index, it.Record.ID, nil)
	}
	return dombatch.Summarize(results), nil
}

func newSource(batches ...[2]string) *mockSource {
	src := &mockSource{payloads: make(map[string][]byte)}
	for _, b := range batches {
		src.payloads[b[0]] = []byte(b[1])
		src.order = append(src.order, b[0])
	}
	return src
}

func TestProcess_AcknowledgesProcessedBatch(t *testing.T) {
	src := newSource([2]string{"a.json", `[{"id":"x"},{"id":"y"}]`})
	enr := &mockEnricher{}
	before := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(OutcomeProcessed))

	summary, err := New(src, enr, nil).Process(context.Background(), "a.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Count(dombatch.StatusOK) != 2 {
		t.Errorf("ok = %d, want 2", summary.Count(dombatch.StatusOK))
	}
	if len(src.acked) != 1 || src.acked[0] != "a.json" {
		t.Errorf("acked = %v", src.acked)
	}
	if got := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(OutcomeProcessed)) - before; got != 1 {
		t.Errorf("processed counter delta = %v, want 1", got)
	}
}

func TestProcess_NoopBatchesAreAcknowledged(t *testing.T) {
	for _, payload := range []string{`{"id":"x"}`, `[]`, `not json`} {
		t.Run(payload, func(t *testing.T) {
			src := newSource([2]string{"b.json", payload})
			enr := &mockEnricher{}

			if _, err := New(src, enr, nil).Process(context.Background(), "b.json"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(enr.calls) != 0 {
				t.Error("enricher should not run for a no-op batch")
			}
			if len(src.acked) != 1 {
				t.Errorf("no-op batch should be acknowledged, acked = %v", src.acked)
			}
		})
	}
}

func TestProcess_StoreFailureLeavesArtifact(t *testing.T) {
	src := newSource([2]string{"c.json", `[{"id":"x"}]`})
	enr := &mockEnricher{err: fmt.Errorf("store init: %w", domain.ErrStoreUnavailable)}

	_, err := New(src, enr, nil).Process(context.Background(), "c.json")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if len(src.acked) != 0 {
		t.Errorf("failed batch must not be acknowledged, acked = %v", src.acked)
	}
}

func TestProcess_FetchError(t *testing.T) {
	src := newSource()
	src.fetchErr = errors.New("boom")

	if _, err := New(src, &mockEnricher{}, nil).Process(context.Background(), "d.json"); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(src.acked) != 0 {
		t.Error("nothing should be acknowledged")
	}
}

func TestDrain_StopsOnStoreFailure(t *testing.T) {
	src := newSource(
		[2]string{"1.json", `[{"id":"a"}]`},
		[2]string{"2.json", `[{"id":"b"}]`},
		[2]string{"3.json", `[{"id":"c"}]`},
	)
	enr := &mockEnricher{errFor: map[int]error{2: domain.ErrStoreUnavailable}}

	n, err := New(src, enr, nil).Drain(context.Background())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1", n)
	}
	if len(enr.calls) != 2 {
		t.Errorf("enrich calls = %d, want 2", len(enr.calls))
	}
	if len(src.acked) != 1 || src.acked[0] != "1.json" {
		t.Errorf("acked = %v", src.acked)
	}
}

func TestDrain_ContinuesPastOtherFailures(t *testing.T) {
	src := newSource(
		[2]string{"1.json", `[{"id":"a"}]`},
		[2]string{"2.json", `[{"id":"b"}]`},
	)
	enr := &mockEnricher{errFor: map[int]error{1: errors.New("unexpected")}}

	n, err := New(src, enr, nil).Drain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(src.acked) != 1 || src.acked[0] != "2.json" {
		t.Errorf("processed = %d, acked = %v", n, src.acked)
	}
}

func TestDrain_ListError(t *testing.T) {
	src := newSource()
	src.listErr = errors.New("bucket gone")
	if _, err := New(src, &mockEnricher{}, nil).Drain(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestWatch_DrainsUntilCancelled(t *testing.T) {
	src := newSource([2]string{"1.json", `[{"id":"a"}]`})
	enr := &mockEnricher{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := New(src, enr, nil).Watch(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.acked) != 1 {
		t.Errorf("acked = %v, want the single batch", src.acked)
	}
	src.mu.Lock()
	listed := src.listed
	src.mu.Unlock()
	if listed < 2 {
		t.Errorf("listed %d times, want repeated polling", listed)
	}
}

func TestWatch_InvalidInterval(t *testing.T) {
	err := New(newSource(), &mockEnricher{}, nil).Watch(context.Background(), 0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
