// Package recorder turns completed request/response cycles into persisted
// slow-request samples.
//
// Recording never fails the response being served: store, pruning and alert
// failures are logged and swallowed. Per-request timing travels in the
// request's own context (see WithStart), never in shared fields, so the
// Recorder is safe to call from any number of concurrent requests.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kcz17/dumpslow/alerting"
	"github.com/kcz17/dumpslow/logging"
	"github.com/kcz17/dumpslow/metrics"
	"github.com/kcz17/dumpslow/samples"
	"github.com/kcz17/dumpslow/store"
)

const (
	DefaultLongRequestThreshold = 1 * time.Second
	DefaultRetentionWindow      = 4 * 7 * 24 * time.Hour
)

type Options struct {
	Store   store.Store
	Logger  logging.Logger
	Metrics *metrics.Metrics // Metrics may be nil.
	Alerts  alerting.Sink    // Alerts may be nil when AlertThreshold is zero.
	Clock   Clock            // Clock defaults to the realtime clock.
	// LongRequestThreshold is the minimum duration recorded. Zero selects
	// DefaultLongRequestThreshold.
	LongRequestThreshold time.Duration
	// AlertThreshold is the duration above which an alert is sent. Zero
	// disables alerting.
	AlertThreshold time.Duration
	// RetentionWindow is the maximum age of stored samples. Zero selects
	// DefaultRetentionWindow.
	RetentionWindow time.Duration
}

// Observation describes one completed request.
type Observation struct {
	View      string    // View is the resolved handler name.
	Request   string    // Request is a human-readable description such as "GET /slow".
	StartedAt time.Time // StartedAt is when the request began.
}

type Recorder struct {
	store                store.Store
	logger               logging.Logger
	metrics              *metrics.Metrics
	alerts               alerting.Sink
	clock                Clock
	longRequestThreshold time.Duration
	alertThreshold       time.Duration
	retentionWindow      time.Duration
	// observers are notified after each successful store write. They are
	// expected to be registered at start-up; observersMux guards late
	// registrations against concurrent requests.
	observers    []func(samples.Sample)
	observersMux *sync.RWMutex
}

func New(options *Options) (*Recorder, error) {
	if options.Store == nil {
		return nil, errors.New("recorder.New() expected non-nil Store")
	}
	if options.Logger == nil {
		return nil, errors.New("recorder.New() expected non-nil Logger")
	}
	if options.LongRequestThreshold < 0 || options.AlertThreshold < 0 || options.RetentionWindow < 0 {
		return nil, fmt.Errorf("recorder.New() expected non-negative thresholds; got longRequestThreshold = %v, alertThreshold = %v, retentionWindow = %v",
			options.LongRequestThreshold, options.AlertThreshold, options.RetentionWindow)
	}
	if options.AlertThreshold > 0 && options.Alerts == nil {
		return nil, errors.New("recorder.New() expected non-nil Alerts when AlertThreshold is set")
	}

	r := &Recorder{
		store:                options.Store,
		logger:               options.Logger,
		metrics:              options.Metrics,
		alerts:               options.Alerts,
		clock:                options.Clock,
		longRequestThreshold: options.LongRequestThreshold,
		alertThreshold:       options.AlertThreshold,
		retentionWindow:      options.RetentionWindow,
		observersMux:         &sync.RWMutex{},
	}
	if r.clock == nil {
		r.clock = NewRealtimeClock()
	}
	if r.longRequestThreshold == 0 {
		r.longRequestThreshold = DefaultLongRequestThreshold
	}
	if r.retentionWindow == 0 {
		r.retentionWindow = DefaultRetentionWindow
	}

	return r, nil
}

// RegisterObserver adds fn to the functions called synchronously with every
// successfully stored Sample.
func (r *Recorder) RegisterObserver(fn func(samples.Sample)) {
	r.observersMux.Lock()
	r.observers = append(r.observers, fn)
	r.observersMux.Unlock()
}

// Now reads the recorder's clock, for callers timing a request.
func (r *Recorder) Now() time.Time {
	return r.clock.Now()
}

// Finish records the request whose start time was stored in ctx by WithStart
// (or the StartedAtUserValue of a fasthttp.RequestCtx).
func (r *Recorder) Finish(ctx context.Context, view string, request string) {
	startedAt, ok := StartFromContext(ctx)
	if !ok {
		r.logger.LogRecorderError("finish", fmt.Errorf("expected start time in request context for view %s", view))
		return
	}
	r.OnResponse(ctx, Observation{View: view, Request: request, StartedAt: startedAt}, r.clock.Now())
}

// OnResponse records the observation if it took at least the long request
// threshold. It never returns an error: recording must not affect the
// response being served.
func (r *Recorder) OnResponse(ctx context.Context, o Observation, now time.Time) {
	if o.View == "" {
		r.logger.LogRecorderError("observe", errors.New("expected non-empty view"))
		return
	}
	if now.Before(o.StartedAt) {
		r.logger.LogRecorderError("observe", fmt.Errorf("expected now >= startedAt for view %s; got now = %v, startedAt = %v", o.View, now, o.StartedAt))
		return
	}

	// The threshold is checked before any store interaction so the
	// overwhelming majority of requests cost nothing.
	duration := now.Sub(o.StartedAt)
	if duration < r.longRequestThreshold {
		return
	}

	ctx = detach(ctx)
	sample := samples.Sample{
		View:            o.View,
		DurationSeconds: duration.Seconds(),
		RecordedAt:      o.StartedAt,
	}
	r.logger.LogSlowRequest(sample.View, sample.DurationSeconds)
	r.metrics.SlowRequest(sample.View)

	if r.persist(ctx, sample, now) {
		r.notify(sample)
	}

	if r.alertThreshold > 0 && duration > r.alertThreshold {
		r.alert(ctx, o, sample)
	}
}

// persist writes the sample and prunes expired samples, returning whether the
// write succeeded.
func (r *Recorder) persist(ctx context.Context, sample samples.Sample, now time.Time) bool {
	member, err := sample.Encode()
	if err != nil {
		r.logger.LogRecorderError("encode", err)
		return false
	}

	if err := r.store.Add(ctx, member, sample.Score()); err != nil {
		r.metrics.StoreError("add")
		r.logger.LogRecorderError("add", err)
		return false
	}

	cutoff := samples.Score(now.Add(-r.retentionWindow))
	if err := r.store.RemoveRangeByScore(ctx, store.NegativeInfinity, cutoff); err != nil {
		r.metrics.StoreError("prune")
		r.logger.LogRecorderError("prune", err)
	}

	return true
}

func (r *Recorder) notify(sample samples.Sample) {
	r.observersMux.RLock()
	observers := r.observers
	r.observersMux.RUnlock()

	for _, fn := range observers {
		fn(sample)
	}
}

func (r *Recorder) alert(ctx context.Context, o Observation, sample samples.Sample) {
	alert := alerting.NewAlert(sample.View, o.Request, sample.DurationSeconds, sample.RecordedAt)
	if err := r.alerts.Send(ctx, alert); err != nil {
		r.metrics.Alert(false)
		r.logger.LogRecorderError("alert", err)
		return
	}
	r.metrics.Alert(true)
}
