// Package refreshworker periodically reloads the hierarchy tree from the
// backing store and swaps it into the interaction controller.
package refreshworker

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"geopanel/map-core/internal/hierarchy"
	"geopanel/map-core/internal/metrics"
)

// TreeSource is the minimal store interface the worker needs.
// *store.Store satisfies this.
type TreeSource interface {
	LoadTree(ctx context.Context) (*hierarchy.Data, error)
}

// TreeSink receives the reloaded tree. *interact.Controller satisfies this.
type TreeSink interface {
	UpdateData(d *hierarchy.Data) (hierarchy.ValidationResult, bool)
}

type Options struct {
	Interval  time.Duration
	JitterPct int
	Timeout   time.Duration
}

type Worker struct {
	log       zerolog.Logger
	source    TreeSource
	sink      TreeSink
	interval  time.Duration
	jitterPct int
	timeout   time.Duration
	metrics   *metrics.Metrics
}

func New(log zerolog.Logger, source TreeSource, sink TreeSink, opts Options, m *metrics.Metrics) *Worker {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	jitter := opts.JitterPct
	if jitter < 0 || jitter > 50 {
		jitter = 10
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Worker{
		log:       log,
		source:    source,
		sink:      sink,
		interval:  interval,
		jitterPct: jitter,
		timeout:   timeout,
		metrics:   m,
	}
}

// Run reloads once immediately, then on every jittered interval until the
// context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.source == nil || w.sink == nil {
		return
	}

	w.ReloadOnce(ctx)

	timer := time.NewTimer(w.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w.ReloadOnce(ctx)
			timer.Reset(w.nextInterval())
		}
	}
}

// ReloadOnce performs a single load-validate-swap cycle. A failed load or
// an invalid tree leaves the controller's current tree in place.
func (w *Worker) ReloadOnce(ctx context.Context) {
	start := time.Now()
	loadCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	data, err := w.source.LoadTree(loadCtx)
	if err != nil {
		w.metrics.IncTreeReload("error")
		w.log.Error().Err(err).Msg("tree reload failed")
		return
	}

	res, ok := w.sink.UpdateData(data)
	w.metrics.ObserveTreeReloadDuration(time.Since(start))
	if !ok {
		w.metrics.IncTreeReload("invalid")
		w.log.Warn().Int("errors", len(res.Errors)).Msg("reloaded tree failed validation, keeping previous tree")
		return
	}

	w.metrics.IncTreeReload("ok")
	w.log.Info().Int("roots", len(data.GeoLocations)).Dur("took", time.Since(start)).Msg("tree reloaded")
}

// nextInterval spreads reloads out so multiple instances do not hit the
// database in lockstep.
func (w *Worker) nextInterval() time.Duration {
	if w.jitterPct == 0 {
		return w.interval
	}
	span := int64(w.interval) * int64(w.jitterPct) / 100
	if span <= 0 {
		return w.interval
	}
	return w.interval - time.Duration(span/2) + time.Duration(rand.Int63n(span))
}
