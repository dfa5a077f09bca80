package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jackwhelpton/fasthttp-routing/v2"
	"github.com/kcz17/dumpslow/aggregator"
	"github.com/kcz17/dumpslow/interval"
	"github.com/kcz17/dumpslow/recentsamples"
	"github.com/kcz17/dumpslow/recorder"
	"github.com/kcz17/dumpslow/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// APIServer exposes the slow request report and operational metrics.
type APIServer struct {
	Aggregator *aggregator.Aggregator
	Recent     *recentsamples.Buffer
	Gatherer   prometheus.Gatherer
	Clock      recorder.Clock
}

func (a *APIServer) ListenAndServe(addr string) error {
	return fasthttp.ListenAndServe(addr, a.router().HandleRequest)
}

func (a *APIServer) router() *routing.Router {
	router := routing.New()

	router.Get("/health", a.healthHandler())
	router.Get("/report", a.reportHandler())
	router.Get("/recent", a.recentHandler())
	router.Delete("/recent", a.resetRecentHandler())
	router.Get("/metrics", a.metricsHandler())

	return router
}

func (a *APIServer) healthHandler() routing.Handler {
	return func(c *routing.Context) error {
		return c.Write("ok\n")
	}
}

// reportHandler serves the report as JSON. Query arguments mirror the report
// CLI: sort, interval, reverse, limit and max.
func (a *APIServer) reportHandler() routing.Handler {
	return func(c *routing.Context) error {
		q, err := a.parseReportQuery(c.QueryArgs())
		if err != nil {
			return routing.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		rows, err := a.Aggregator.Summarize(c.RequestCtx, q)
		if err != nil {
			if errors.Is(err, store.ErrStoreUnavailable) {
				return routing.NewHTTPError(http.StatusServiceUnavailable, err.Error())
			}
			return fmt.Errorf("could not summarize samples: err = %w", err)
		}
		if rows == nil {
			rows = []aggregator.Row{}
		}

		b, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("could not marshal report: err = %w", err)
		}
		c.SetContentType("application/json")
		return c.Write(b)
	}
}

func (a *APIServer) parseReportQuery(args *fasthttp.Args) (aggregator.Query, error) {
	q := aggregator.NewQuery()

	if args.Has("sort") {
		orderBy, err := aggregator.ParseOrderBy(string(args.Peek("sort")))
		if err != nil {
			return q, err
		}
		q.OrderBy = orderBy
	}

	if args.Has("interval") {
		after, err := interval.Before(a.Clock.Now(), string(args.Peek("interval")))
		if err != nil {
			return q, err
		}
		q.After = &after
	}

	if args.Has("reverse") {
		reverse, err := strconv.ParseBool(string(args.Peek("reverse")))
		if err != nil {
			return q, fmt.Errorf("%w: reverse expected a boolean; got %q", aggregator.ErrInvalidArgument, args.Peek("reverse"))
		}
		q.Descending = !reverse
	}

	if args.Has("limit") {
		limit, err := strconv.Atoi(string(args.Peek("limit")))
		if err != nil {
			return q, fmt.Errorf("%w: limit expected an integer; got %q", aggregator.ErrInvalidArgument, args.Peek("limit"))
		}
		q.Limit = &limit
	}

	if args.Has("max") {
		maxDuration, err := strconv.ParseFloat(string(args.Peek("max")), 64)
		if err != nil {
			return q, fmt.Errorf("%w: max expected a number of seconds; got %q", aggregator.ErrInvalidArgument, args.Peek("max"))
		}
		q.MaxDuration = &maxDuration
	}

	return q, q.Validate()
}

// recentHandler serves the latest recorded samples, oldest first.
func (a *APIServer) recentHandler() routing.Handler {
	return func(c *routing.Context) error {
		b, err := json.Marshal(a.Recent.All())
		if err != nil {
			return fmt.Errorf("could not marshal recent samples: err = %w", err)
		}
		c.SetContentType("application/json")
		return c.Write(b)
	}
}

// resetRecentHandler empties the recent samples buffer. Stored samples are
// not affected.
func (a *APIServer) resetRecentHandler() routing.Handler {
	return func(c *routing.Context) error {
		a.Recent.Reset()
		return c.Write("recent samples reset\n")
	}
}

func (a *APIServer) metricsHandler() routing.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{}))
	return func(c *routing.Context) error {
		handler(c.RequestCtx)
		return nil
	}
}
