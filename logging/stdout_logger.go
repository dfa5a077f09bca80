package logging

import (
	"log"
)

// stdoutLogger logs the output to standard output.
type stdoutLogger struct{}

func NewStdoutLogger() *stdoutLogger {
	return &stdoutLogger{}
}

// LogSlowRequest keeps the "Long request" line format so existing log
// scrapers continue to match it.
func (*stdoutLogger) LogSlowRequest(view string, seconds float64) {
	log.Printf("Long request - %.3fs %s\n", seconds, view)
}

func (*stdoutLogger) LogAlert(view string, request string, seconds float64) {
	log.Printf("Slow request detected on %s %.2fs (view: %s)\n", request, seconds, view)
}

func (*stdoutLogger) LogRecorderError(op string, err error) {
	log.Printf("recorder: %s failed: err = %v\n", op, err)
}

func (*stdoutLogger) LogMalformedRecord(member string, err error) {
	log.Printf("warning: skipping malformed record %q: err = %v\n", member, err)
}
