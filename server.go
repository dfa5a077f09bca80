package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/kcz17/dumpslow/recorder"
	"github.com/kcz17/dumpslow/views"
	"github.com/valyala/fasthttp"
)

type ServerOptions struct {
	FrontendAddr string
	BackendAddr  string
	MaxConns     int
	Recorder     *recorder.Recorder
	Resolver     views.Resolver
}

// proxy forwards a request to the backend. It is satisfied by
// *fasthttp.HostClient.
type proxy interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
}

// Server is a reverse proxy which times every request it forwards and hands
// the timing to the Recorder under the view the request path resolves to.
type Server struct {
	proxying struct {
		FrontendAddr string
		BackendAddr  string
		MaxConns     int
		// server and proxy implement our reverse proxy, allowing requests
		// to be forwarded to the backend host.
		server *fasthttp.Server
		proxy  proxy
	}
	recorder *recorder.Recorder
	resolver views.Resolver
	// isStarted is checked to ensure each Server is only ever started once.
	isStarted bool
	// externalOperationsLock guards external operations which interact with the server.
	externalOperationsLock *sync.Mutex
}

func NewServer(options *ServerOptions) *Server {
	s := &Server{
		recorder:               options.Recorder,
		resolver:               options.Resolver,
		isStarted:              false,
		externalOperationsLock: &sync.Mutex{},
	}
	s.proxying.FrontendAddr = options.FrontendAddr
	s.proxying.BackendAddr = options.BackendAddr
	s.proxying.MaxConns = options.MaxConns
	s.proxying.proxy = &fasthttp.HostClient{Addr: options.BackendAddr, MaxConns: options.MaxConns}
	return s
}

func (s *Server) ListenAndServe() error {
	s.externalOperationsLock.Lock()
	if s.isStarted {
		s.externalOperationsLock.Unlock()
		return errors.New("server already started")
	}
	s.proxying.server = &fasthttp.Server{
		Handler:         s.requestHandler(),
		CloseOnShutdown: true,
	}
	s.isStarted = true
	s.externalOperationsLock.Unlock()

	if err := s.proxying.server.ListenAndServe(s.proxying.FrontendAddr); err != nil {
		return fmt.Errorf("Server.ListenAndServe() got fasthttp server error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown() error {
	s.externalOperationsLock.Lock()
	defer s.externalOperationsLock.Unlock()

	if !s.isStarted {
		return errors.New("Shutdown() expected server running; server is not running")
	}
	return s.proxying.server.Shutdown()
}

func (s *Server) requestHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		req := &ctx.Request
		resp := &ctx.Response

		// Remove connection header per RFC2616.
		req.Header.Del("Connection")

		// The start time is held in this request's user values and never on
		// the Server, so concurrent requests cannot see each other's timing.
		ctx.SetUserValue(recorder.StartedAtUserValue, s.recorder.Now())

		if err := s.proxying.proxy.Do(req, resp); err != nil {
			log.Printf("fasthttp: error when proxying the request: %v", err)
			ctx.Error("bad gateway", http.StatusBadGateway)
		}

		// Remove connection header from response per RFC2616.
		resp.Header.Del("Connection")

		path := string(ctx.Path())
		s.recorder.Finish(ctx, views.ViewFor(s.resolver, path), string(ctx.Method())+" "+string(ctx.RequestURI()))
	}
}
