// Package logtest provides a logging.Logger which captures events for
// assertions in tests.
package logtest

import (
	"fmt"
	"sync"
)

type Logger struct {
	mux       *sync.Mutex
	slow      []string
	alerts    []string
	errors    []string
	malformed []string
}

func New() *Logger {
	return &Logger{mux: &sync.Mutex{}}
}

func (l *Logger) LogSlowRequest(view string, seconds float64) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.slow = append(l.slow, fmt.Sprintf("%s %.3f", view, seconds))
}

func (l *Logger) LogAlert(view string, request string, seconds float64) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.alerts = append(l.alerts, fmt.Sprintf("%s %s %.3f", view, request, seconds))
}

func (l *Logger) LogRecorderError(op string, err error) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.errors = append(l.errors, fmt.Sprintf("%s: %v", op, err))
}

func (l *Logger) LogMalformedRecord(member string, _ error) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.malformed = append(l.malformed, member)
}

// SlowRequests returns "<view> <seconds>" for each slow request logged.
func (l *Logger) SlowRequests() []string {
	l.mux.Lock()
	defer l.mux.Unlock()
	return append([]string(nil), l.slow...)
}

// Alerts returns "<view> <request> <seconds>" for each alert logged.
func (l *Logger) Alerts() []string {
	l.mux.Lock()
	defer l.mux.Unlock()
	return append([]string(nil), l.alerts...)
}

// Errors returns "<op>: <err>" for each recorder error logged.
func (l *Logger) Errors() []string {
	l.mux.Lock()
	defer l.mux.Unlock()
	return append([]string(nil), l.errors...)
}

// Malformed returns the raw members reported as malformed.
func (l *Logger) Malformed() []string {
	l.mux.Lock()
	defer l.mux.Unlock()
	return append([]string(nil), l.malformed...)
}
