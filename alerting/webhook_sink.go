package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// webhookSink posts alerts as JSON to an incoming webhook. The "text" field
// makes the payload directly usable by Slack-compatible webhooks.
type webhookSink struct {
	url     string
	client  *fasthttp.Client
	timeout time.Duration
}

type webhookMessage struct {
	Text  string `json:"text"`
	Alert *Alert `json:"alert"`
}

func NewWebhookSink(url string, timeout time.Duration) *webhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookSink{
		url:     url,
		client:  &fasthttp.Client{},
		timeout: timeout,
	}
}

func (s *webhookSink) Send(ctx context.Context, alert *Alert) error {
	if s.url == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	body, err := json.Marshal(&webhookMessage{Text: alert.String(), Alert: alert})
	if err != nil {
		return fmt.Errorf("could not marshal alert: err = %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(http.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("expected webhook POST returns nil err; got err = %w", err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("expected webhook status 2xx; got status = %d", resp.StatusCode())
	}

	return nil
}
