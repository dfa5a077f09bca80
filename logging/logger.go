package logging

type Logger interface {
	LogSlowRequest(view string, seconds float64)           // Takes in the request duration in seconds.
	LogAlert(view string, request string, seconds float64) // Takes in the request duration in seconds.
	LogRecorderError(op string, err error)                 // op names the failed store or sink operation.
	LogMalformedRecord(member string, err error)           // member is the raw stored payload.
}

// noopLogger does not perform any logging.
type noopLogger struct{}

func NewNoopLogger() *noopLogger {
	return &noopLogger{}
}

func (*noopLogger) LogSlowRequest(string, float64) {
	return
}

func (*noopLogger) LogAlert(string, string, float64) {
	return
}

func (*noopLogger) LogRecorderError(string, error) {
	return
}

func (*noopLogger) LogMalformedRecord(string, error) {
	return
}
