package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kcz17/dumpslow/internal/logtest"
	"github.com/kcz17/dumpslow/recorder"
	"github.com/kcz17/dumpslow/samples"
	"github.com/kcz17/dumpslow/store"
	"github.com/kcz17/dumpslow/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

// simulatedClock provides us control over the exact time returned.
type simulatedClock struct {
	mux *sync.Mutex
	t   time.Time
}

func newSimulatedClock() *simulatedClock {
	return &simulatedClock{mux: &sync.Mutex{}, t: time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *simulatedClock) Now() time.Time {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.t
}

func (c *simulatedClock) Advance(d time.Duration) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.t = c.t.Add(d)
}

// delayingProxy stands in for the backend, taking delay to respond.
type delayingProxy struct {
	clock *simulatedClock
	delay time.Duration
	err   error
}

func (p *delayingProxy) Do(_ *fasthttp.Request, resp *fasthttp.Response) error {
	p.clock.Advance(p.delay)
	if p.err != nil {
		return p.err
	}
	resp.SetStatusCode(http.StatusOK)
	resp.Header.Set("Connection", "keep-alive")
	resp.SetBodyString("backend response")
	return nil
}

func newTestServer(t *testing.T, proxy *delayingProxy, s store.Store) *Server {
	rec, err := recorder.New(&recorder.Options{
		Store:  s,
		Logger: logtest.New(),
		Clock:  proxy.clock,
	})
	require.NoError(t, err)

	resolver := views.NewRouteResolver()
	require.NoError(t, resolver.AddRoute("/slow", "app.views.slow"))

	server := NewServer(&ServerOptions{
		BackendAddr: "localhost:8081",
		MaxConns:    1,
		Recorder:    rec,
		Resolver:    resolver,
	})
	server.proxying.proxy = proxy
	return server
}

func serve(server *Server, method string, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	server.requestHandler()(ctx)
	return ctx
}

func TestServer_RecordsSlowRequest(t *testing.T) {
	clock := newSimulatedClock()
	s := store.NewMemoryStore()
	server := newTestServer(t, &delayingProxy{clock: clock, delay: 1500 * time.Millisecond}, s)
	startedAt := clock.Now()

	ctx := serve(server, "GET", "/slow?page=2")

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "backend response", string(ctx.Response.Body()))

	members, err := s.RangeByScore(context.Background(), store.NegativeInfinity, store.PositiveInfinity)
	require.NoError(t, err)
	require.Len(t, members, 1)
	sample, err := samples.Decode(members[0].Payload, members[0].Score)
	require.NoError(t, err)
	assert.Equal(t, "app.views.slow", sample.View)
	assert.InDelta(t, 1.5, sample.DurationSeconds, 0.0005)
	assert.Equal(t, samples.Score(startedAt), members[0].Score)
}

func TestServer_IgnoresFastRequest(t *testing.T) {
	clock := newSimulatedClock()
	s := store.NewMemoryStore()
	server := newTestServer(t, &delayingProxy{clock: clock, delay: 200 * time.Millisecond}, s)

	serve(server, "GET", "/slow")

	assert.Equal(t, 0, s.Len())
}

func TestServer_RecordsUnresolvedPath(t *testing.T) {
	clock := newSimulatedClock()
	s := store.NewMemoryStore()
	server := newTestServer(t, &delayingProxy{clock: clock, delay: 2 * time.Second}, s)

	serve(server, "POST", "/unknown")

	members, err := s.RangeByScore(context.Background(), store.NegativeInfinity, store.PositiveInfinity)
	require.NoError(t, err)
	require.Len(t, members, 1)
	sample, err := samples.Decode(members[0].Payload, members[0].Score)
	require.NoError(t, err)
	assert.Equal(t, views.Unresolved("/unknown"), sample.View)
}

func TestServer_ProxyErrorReturnsBadGateway(t *testing.T) {
	clock := newSimulatedClock()
	s := store.NewMemoryStore()
	server := newTestServer(t, &delayingProxy{clock: clock, delay: 3 * time.Second, err: errors.New("connection refused")}, s)

	ctx := serve(server, "GET", "/slow")

	assert.Equal(t, http.StatusBadGateway, ctx.Response.StatusCode())
	// A request which timed out against the backend is exactly the kind of
	// slow request worth keeping.
	assert.Equal(t, 1, s.Len())
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	clock := newSimulatedClock()
	server := newTestServer(t, &delayingProxy{clock: clock}, store.NewMemoryStore())

	assert.Error(t, server.Shutdown())
}
