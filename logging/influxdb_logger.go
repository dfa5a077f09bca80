package logging

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"log"
	"time"
)

// influxDBLogger logs the output to an external InfluxDB instance. Errors are
// also written to standard output so they stay visible while InfluxDB is
// unreachable.
type influxDBLogger struct {
	client      influxdb2.Client
	asyncWriter api.WriteAPI
}

func NewInfluxDBLogger(baseURL, authToken, org, bucket string) *influxDBLogger {
	options := influxdb2.DefaultOptions()
	options.WriteOptions().SetBatchSize(1000)
	options.WriteOptions().SetFlushInterval(250)

	client := influxdb2.NewClientWithOptions(baseURL, authToken, options)
	writeAPI := client.WriteAPI(org, bucket)

	// Create a goroutine for reading and logging async write errors.
	errorsCh := writeAPI.Errors()
	go func() {
		for err := range errorsCh {
			log.Printf("influxdb2 logging async write error: %v\n", err)
		}
	}()

	return &influxDBLogger{
		client:      client,
		asyncWriter: writeAPI,
	}
}

func (l *influxDBLogger) LogSlowRequest(view string, seconds float64) {
	p := influxdb2.NewPointWithMeasurement("dumpslow_slow_request").
		AddTag("view", view).
		AddField("t", seconds).
		SetTime(time.Now())
	l.asyncWriter.WritePoint(p)
}

func (l *influxDBLogger) LogAlert(view string, request string, seconds float64) {
	p := influxdb2.NewPointWithMeasurement("dumpslow_alert").
		AddTag("view", view).
		AddField("request", request).
		AddField("t", seconds).
		SetTime(time.Now())
	l.asyncWriter.WritePoint(p)
}

func (l *influxDBLogger) LogRecorderError(op string, err error) {
	log.Printf("recorder: %s failed: err = %v\n", op, err)
	p := influxdb2.NewPointWithMeasurement("dumpslow_recorder_error").
		AddTag("op", op).
		AddField("err", err.Error()).
		SetTime(time.Now())
	l.asyncWriter.WritePoint(p)
}

func (l *influxDBLogger) LogMalformedRecord(member string, err error) {
	log.Printf("warning: skipping malformed record %q: err = %v\n", member, err)
	p := influxdb2.NewPointWithMeasurement("dumpslow_malformed_record").
		AddField("member", member).
		AddField("err", err.Error()).
		SetTime(time.Now())
	l.asyncWriter.WritePoint(p)
}

// Close flushes buffered points and releases the client.
func (l *influxDBLogger) Close() {
	l.asyncWriter.Flush()
	l.client.Close()
}
