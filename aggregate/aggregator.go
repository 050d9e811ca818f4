// Package aggregate fans an annotation request out to every configured
// backend in parallel, isolates per-backend failures and timeouts, resolves
// the surviving raw annotations through the vocabulary hierarchy, and merges
// the per-backend lists in backend-declared order into one deduplicated
// result. The merged output is deterministic regardless of completion timing.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/backend"
	"github.com/c360studio/semtag/vocabulary"
)

const (
	defaultBackendTimeout = 30 * time.Second
	defaultOverallTimeout = 90 * time.Second
)

// Aggregator coordinates the backend fan-out for one or more requests.
// It is safe for concurrent use.
type Aggregator struct {
	hierarchy      *vocabulary.Hierarchy
	backends       []backend.Backend
	workers        int
	backendTimeout time.Duration
	overallTimeout time.Duration
	logger         *slog.Logger
	metrics        *Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWorkers bounds the worker pool. Zero or a value above the backend
// count means one worker per backend; fewer workers make excess backends
// queue for a free slot.
func WithWorkers(workers int) Option {
	return func(a *Aggregator) {
		a.workers = workers
	}
}

// WithBackendTimeout bounds each backend invocation. Zero disables the
// per-backend deadline.
func WithBackendTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) {
		a.backendTimeout = timeout
	}
}

// WithOverallTimeout bounds total wall time for one request. When it
// elapses, backends still pending are treated as timed out and the merge
// proceeds with whatever terminated in time. Zero disables the bound.
func WithOverallTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) {
		a.overallTimeout = timeout
	}
}

// WithLogger sets the logger for per-backend diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// New creates an Aggregator over the given backends. Backend order is the
// declared order: it fixes the merge order of the final result.
func New(hierarchy *vocabulary.Hierarchy, backends []backend.Backend, opts ...Option) (*Aggregator, error) {
	if hierarchy == nil {
		return nil, fmt.Errorf("aggregate: hierarchy is required")
	}

	a := &Aggregator{
		hierarchy:      hierarchy,
		backends:       backends,
		backendTimeout: defaultBackendTimeout,
		overallTimeout: defaultOverallTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Tags returns the declared backend tags in declared order.
func (a *Aggregator) Tags() []annotation.Tag {
	tags := make([]annotation.Tag, len(a.backends))
	for i, b := range a.backends {
		tags[i] = b.Tag()
	}
	return tags
}

// outcome is one backend's terminal state for a request.
type outcome struct {
	idx         int
	annotations []annotation.Annotation
	err         error
	elapsed     time.Duration
}

// Annotate runs one request through every backend. It never fails: a backend
// error or timeout contributes an empty result set and one diagnostic line,
// and the overall deadline only cuts the wait short — a slow backend's
// eventual result is discarded, its work is not forcibly interrupted.
func (a *Aggregator) Annotate(ctx context.Context, text string) annotation.Result {
	requestID := uuid.NewString()
	n := len(a.backends)
	if a.metrics != nil {
		a.metrics.requests.Inc()
	}
	if n == 0 {
		return annotation.NewResult(nil)
	}

	workers := a.workers
	if workers <= 0 || workers > n {
		workers = n
	}

	jobs := make(chan int)
	outcomes := make(chan outcome, n)
	for w := 0; w < workers; w++ {
		go func() {
			for idx := range jobs {
				outcomes <- a.invoke(ctx, a.backends[idx], idx, text)
			}
		}()
	}
	go func() {
		for idx := 0; idx < n; idx++ {
			jobs <- idx
		}
		close(jobs)
	}()

	var deadline <-chan time.Time
	if a.overallTimeout > 0 {
		timer := time.NewTimer(a.overallTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	perBackend := make([][]annotation.Annotation, n)
	done := make([]bool, n)
	received := 0

collect:
	for received < n {
		select {
		case o := <-outcomes:
			received++
			done[o.idx] = true
			tag := a.backends[o.idx].Tag()
			if o.err != nil {
				a.diagnose(tag, o.err, requestID)
				continue
			}
			perBackend[o.idx] = o.annotations
			if a.metrics != nil {
				a.metrics.backendDuration.WithLabelValues(string(tag)).Observe(o.elapsed.Seconds())
			}
		case <-deadline:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	for idx, ok := range done {
		if ok {
			continue
		}
		tag := a.backends[idx].Tag()
		a.diagnose(tag, annotation.NewBackendError(tag, annotation.Timeout,
			fmt.Errorf("still pending when the overall deadline elapsed")), requestID)
	}

	merged := annotation.Merge(perBackend)
	if a.metrics != nil {
		a.metrics.resultSize.Observe(float64(len(merged)))
	}
	return annotation.NewResult(merged)
}

// invoke runs a single backend with its own deadline and resolves its raw
// annotations through the hierarchy.
func (a *Aggregator) invoke(ctx context.Context, b backend.Backend, idx int, text string) outcome {
	if a.backendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.backendTimeout)
		defer cancel()
	}

	start := time.Now()
	raws, err := b.Run(ctx, text)
	elapsed := time.Since(start)
	if err != nil {
		return outcome{idx: idx, err: err, elapsed: elapsed}
	}

	tag := b.Tag()
	annotations := make([]annotation.Annotation, len(raws))
	for i, raw := range raws {
		path := a.hierarchy.Lookup(raw.VocabularyID)
		annotations[i] = annotation.Annotation{
			Text:         raw.Text,
			VocabularyID: raw.VocabularyID,
			Category:     path.Category,
			Subcategory:  path.Subcategory,
			Term:         path.Term,
			Score:        raw.Score,
			Keyword:      raw.Keyword,
			Inclusion:    raw.Inclusion,
			Exclusion:    raw.Exclusion,
			Mapper:       tag,
		}
	}
	return outcome{idx: idx, annotations: annotations, elapsed: elapsed}
}

// diagnose emits the single out-of-band failure line for a backend and
// bumps the failure counter. Backend failures never reach the caller.
func (a *Aggregator) diagnose(tag annotation.Tag, err error, requestID string) {
	kind := annotation.IOFailure
	if be, ok := annotation.AsBackend(err); ok {
		kind = be.Kind
	}
	if a.metrics != nil {
		a.metrics.backendFailures.WithLabelValues(string(tag), string(kind)).Inc()
	}
	a.logger.Warn(fmt.Sprintf("%s extraction failed: %v", tag, err),
		slog.String("request_id", requestID),
		slog.String("backend", string(tag)),
		slog.String("kind", string(kind)))
}
