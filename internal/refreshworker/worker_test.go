package refreshworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"geopanel/map-core/internal/hierarchy"
)

type fakeSource struct {
	data *hierarchy.Data
	err  error
}

func (f *fakeSource) LoadTree(ctx context.Context) (*hierarchy.Data, error) {
	return f.data, f.err
}

type fakeSink struct {
	mu      sync.Mutex
	updates []*hierarchy.Data
	ok      bool
}

func (f *fakeSink) UpdateData(d *hierarchy.Data) (hierarchy.ValidationResult, bool) {
	f.mu.Lock()
	f.updates = append(f.updates, d)
	f.mu.Unlock()
	if f.ok {
		return hierarchy.ValidationResult{}, true
	}
	return hierarchy.ValidationResult{Errors: []hierarchy.ValidationError{{Path: "GeoLocations[0]", Message: "missing id"}}}, false
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func validData() *hierarchy.Data {
	return &hierarchy.Data{GeoLocations: []*hierarchy.GeoNode{
		{ID: "r1", Label: "Region", Geometry: &hierarchy.Geometry{Coordinates: []float64{0, 0}}},
	}}
}

func TestReloadOnce_SwapsValidTree(t *testing.T) {
	source := &fakeSource{data: validData()}
	sink := &fakeSink{ok: true}
	w := New(zerolog.Nop(), source, sink, Options{}, nil)

	w.ReloadOnce(context.Background())

	if len(sink.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(sink.updates))
	}
	if sink.updates[0] != source.data {
		t.Fatalf("expected the loaded tree to be handed to the sink")
	}
}

func TestReloadOnce_LoadErrorSkipsSwap(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	sink := &fakeSink{ok: true}
	w := New(zerolog.Nop(), source, sink, Options{}, nil)

	w.ReloadOnce(context.Background())

	if len(sink.updates) != 0 {
		t.Fatalf("expected no update on load failure, got %d", len(sink.updates))
	}
}

func TestReloadOnce_InvalidTreeKeepsPrevious(t *testing.T) {
	source := &fakeSource{data: &hierarchy.Data{}}
	sink := &fakeSink{ok: false}
	w := New(zerolog.Nop(), source, sink, Options{}, nil)

	// The sink reports the tree invalid; the worker only logs and counts.
	w.ReloadOnce(context.Background())

	if len(sink.updates) != 1 {
		t.Fatalf("expected exactly one attempted update, got %d", len(sink.updates))
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	source := &fakeSource{data: validData()}
	sink := &fakeSink{ok: true}
	w := New(zerolog.Nop(), source, sink, Options{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Run reloads once up front, then waits on the interval.
	deadline := time.After(2 * time.Second)
	for {
		if sink.count() > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected an initial reload")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Run to return after cancel")
	}
}

func TestNextInterval_StaysNearBase(t *testing.T) {
	w := New(zerolog.Nop(), &fakeSource{}, &fakeSink{}, Options{Interval: time.Minute, JitterPct: 10}, nil)
	for i := 0; i < 100; i++ {
		d := w.nextInterval()
		if d < 54*time.Second || d > 66*time.Second {
			t.Fatalf("jittered interval out of band: %v", d)
		}
	}
}
