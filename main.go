package main

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/kcz17/dumpslow/aggregator"
	"github.com/kcz17/dumpslow/alerting"
	"github.com/kcz17/dumpslow/config"
	"github.com/kcz17/dumpslow/logging"
	"github.com/kcz17/dumpslow/metrics"
	"github.com/kcz17/dumpslow/recentsamples"
	"github.com/kcz17/dumpslow/recorder"
	"github.com/kcz17/dumpslow/store"
	"github.com/kcz17/dumpslow/views"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml (default: ./config.yaml or /app/config.yaml)")
	pflag.Parse()

	conf := config.ReadConfig(*configPath)

	var logger logging.Logger
	switch *conf.Logging.Driver {
	case "noop":
		logger = logging.NewNoopLogger()
	case "stdout":
		logger = logging.NewStdoutLogger()
	case "influxdb":
		influxDBLogger := logging.NewInfluxDBLogger(
			*conf.Logging.InfluxDB.Host,
			*conf.Logging.InfluxDB.Token,
			*conf.Logging.InfluxDB.Org,
			*conf.Logging.InfluxDB.Bucket,
		)
		defer influxDBLogger.Close()
		logger = influxDBLogger
	default:
		log.Fatalf("expected logging.driver one of {noop, stdout, influxdb}; got %s", *conf.Logging.Driver)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	m := metrics.New(registry)

	samplesStore := openStore(conf)

	alerts, err := openAlertSink(conf, logger)
	if err != nil {
		log.Fatalf("expected openAlertSink() returns nil err; got err = %v", err)
	}

	retentionWindow, err := conf.RetentionWindow()
	if err != nil {
		log.Fatalf("expected conf.RetentionWindow() returns nil err; got err = %v", err)
	}
	clock := recorder.NewRealtimeClock()
	rec, err := recorder.New(&recorder.Options{
		Store:                samplesStore,
		Logger:               logger,
		Metrics:              m,
		Alerts:               alerts,
		Clock:                clock,
		LongRequestThreshold: conf.LongRequestThreshold(),
		AlertThreshold:       conf.AlertThreshold(),
		RetentionWindow:      retentionWindow,
	})
	if err != nil {
		log.Fatalf("expected recorder.New() returns nil err; got err = %v", err)
	}

	recent := recentsamples.NewBuffer(*conf.Recording.RecentSamples)
	rec.RegisterObserver(recent.Add)

	resolver, err := buildResolver(conf.Views)
	if err != nil {
		log.Fatalf("expected buildResolver() returns nil err; got err = %v", err)
	}

	server := NewServer(&ServerOptions{
		FrontendAddr: ":" + strconv.Itoa(*conf.Proxying.FrontendPort),
		BackendAddr:  *conf.Proxying.BackendHost + ":" + strconv.Itoa(*conf.Proxying.BackendPort),
		MaxConns:     *conf.Proxying.MaxConns,
		Recorder:     rec,
		Resolver:     resolver,
	})

	apiServer := &APIServer{
		Aggregator: aggregator.New(samplesStore, logger, m),
		Recent:     recent,
		Gatherer:   registry,
		Clock:      clock,
	}
	go func() {
		if err := apiServer.ListenAndServe(":" + strconv.Itoa(*conf.API.Port)); err != nil {
			log.Fatalf("expected apiServer.ListenAndServe() returns nil err; got err = %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("expected server.ListenAndServe() returns nil err; got err = %v", err)
	}
}

func openStore(conf *config.Config) store.Store {
	if *conf.Store.Driver == "memory" {
		return store.NewMemoryStore()
	}

	timeout, err := conf.RedisTimeout()
	if err != nil {
		log.Fatalf("expected conf.RedisTimeout() returns nil err; got err = %v", err)
	}
	redisStore := store.NewRedisStore(&store.RedisOptions{
		Addr:     *conf.Store.Redis.Addr,
		Password: conf.RedisPassword(),
		DB:       *conf.Store.Redis.DB,
		Key:      *conf.Store.Redis.Key,
		Timeout:  timeout,
	})
	// An unreachable Redis at start-up is not fatal: recording failures are
	// logged per request and the store may come back.
	if err := redisStore.Ping(context.Background()); err != nil {
		log.Printf("warning: %v\n", err)
	}
	return redisStore
}

func openAlertSink(conf *config.Config, logger logging.Logger) (alerting.Sink, error) {
	sinkFor := func(driver string) (alerting.Sink, error) {
		switch driver {
		case "log":
			return alerting.NewLogSink(logger), nil
		case "webhook":
			timeout, err := conf.WebhookTimeout()
			if err != nil {
				return nil, err
			}
			return alerting.NewWebhookSink(*conf.Alerting.Webhook.URL, timeout), nil
		}
		return nil, fmt.Errorf("unknown alert driver %s", driver)
	}

	if *conf.Alerting.Driver != "queue" {
		return sinkFor(*conf.Alerting.Driver)
	}

	downstream, err := sinkFor(*conf.Alerting.Queue.Downstream)
	if err != nil {
		return nil, err
	}
	queue, err := alerting.OpenQueue(*conf.Store.Redis.Addr, conf.RedisPassword(), *conf.Store.Redis.DB)
	if err != nil {
		return nil, err
	}
	if err := alerting.NewQueueConsumer(downstream, logger).Start(queue); err != nil {
		return nil, err
	}
	return alerting.NewQueueSink(queue), nil
}

func buildResolver(routes []config.View) (*views.RouteResolver, error) {
	resolver := views.NewRouteResolver()
	for _, route := range routes {
		var err error
		if route.Prefix {
			err = resolver.AddPrefix(*route.Path, *route.View)
		} else {
			err = resolver.AddRoute(*route.Path, *route.View)
		}
		if err != nil {
			return nil, fmt.Errorf("expected view %s at %s is valid; got err = %w", *route.View, *route.Path, err)
		}
	}
	return resolver, nil
}
