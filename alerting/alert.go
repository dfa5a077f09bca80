// Package alerting delivers notifications for requests which exceed the
// alert threshold.
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kcz17/dumpslow/logging"
)

type Alert struct {
	ID              string    `json:"id"`
	View            string    `json:"view"`
	DurationSeconds float64   `json:"duration_seconds"`
	Request         string    `json:"request"` // Request is a human-readable description such as "GET /slow".
	StartedAt       time.Time `json:"started_at"`
}

func NewAlert(view string, request string, seconds float64, startedAt time.Time) *Alert {
	return &Alert{
		ID:              uuid.New().String(),
		View:            view,
		DurationSeconds: seconds,
		Request:         request,
		StartedAt:       startedAt,
	}
}

func (a *Alert) String() string {
	return fmt.Sprintf("Slow request detected on %s %.2fs", a.Request, a.DurationSeconds)
}

// Sink delivers an alert. Callers treat delivery failures as non-fatal.
type Sink interface {
	Send(ctx context.Context, alert *Alert) error
}

// logSink writes alerts to the event logger.
type logSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *logSink {
	return &logSink{logger: logger}
}

func (s *logSink) Send(_ context.Context, alert *Alert) error {
	s.logger.LogAlert(alert.View, alert.Request, alert.DurationSeconds)
	return nil
}
