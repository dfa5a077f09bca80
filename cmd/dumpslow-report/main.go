// Command dumpslow-report summarizes recorded slow requests by view.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kcz17/dumpslow/aggregator"
	"github.com/kcz17/dumpslow/config"
	"github.com/kcz17/dumpslow/interval"
	"github.com/kcz17/dumpslow/logging"
	"github.com/kcz17/dumpslow/store"
	"github.com/spf13/pflag"
)

type options struct {
	order       string
	interval    string
	reverse     bool
	limit       *int
	maxDuration float64
	configPath  string
}

func parseOptions(args []string, output io.Writer) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("dumpslow-report", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&o.order, "sort", "s", string(aggregator.ByTotal), "what to sort by (count, total, average; at is an alias of total)")
	fs.StringVarP(&o.interval, "interval", "i", "", "interval to report on (eg. 3d 1w) (default: all)")
	fs.BoolVarP(&o.reverse, "reverse", "r", false, "reverse the sort order (largest last instead of first)")
	limit := fs.IntP("top", "t", 0, "just show the top NUM views")
	fs.Float64VarP(&o.maxDuration, "max", "m", 20, "ignore entries at or over SECS seconds, 0 to keep all")
	fs.StringVarP(&o.configPath, "config", "c", "", "path to config.yaml")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments %v", fs.Args())
	}
	if fs.Changed("top") {
		o.limit = limit
	}
	return o, nil
}

// query translates the command line into an aggregator query relative to now.
func (o *options) query(now time.Time) (aggregator.Query, error) {
	q := aggregator.NewQuery()

	orderBy, err := aggregator.ParseOrderBy(o.order)
	if err != nil {
		return q, err
	}
	q.OrderBy = orderBy
	q.Descending = !o.reverse
	q.Limit = o.limit

	if o.interval != "" {
		after, err := interval.Before(now, o.interval)
		if err != nil {
			return q, err
		}
		q.After = &after
	}

	if o.maxDuration != 0 {
		maxDuration := o.maxDuration
		q.MaxDuration = &maxDuration
	}

	return q, q.Validate()
}

// openStore connects to the store samples are recorded in. Only Redis
// outlives the recording process.
func openStore(conf *config.Config) (*store.RedisStore, error) {
	if *conf.Store.Driver != "redis" {
		return nil, fmt.Errorf("store.driver %s keeps no samples between processes; expected redis", *conf.Store.Driver)
	}
	timeout, err := conf.RedisTimeout()
	if err != nil {
		return nil, err
	}
	return store.NewRedisStore(&store.RedisOptions{
		Addr:     *conf.Store.Redis.Addr,
		Password: conf.RedisPassword(),
		DB:       *conf.Store.Redis.DB,
		Key:      *conf.Store.Redis.Key,
		Timeout:  timeout,
	}), nil
}

func report(ctx context.Context, s store.Store, q aggregator.Query, w io.Writer) error {
	rows, err := aggregator.New(s, logging.NewStdoutLogger(), nil).Summarize(ctx, q)
	if err != nil {
		return err
	}
	return writeTable(w, q.OrderBy, rows)
}

func main() {
	o, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		exit(err)
	}

	q, err := o.query(time.Now())
	if err != nil {
		exit(err)
	}

	conf, err := config.Load(o.configPath)
	if err != nil {
		exit(err)
	}
	s, err := openStore(conf)
	if err != nil {
		exit(err)
	}
	defer s.Close()

	if err := report(context.Background(), s, q, os.Stdout); err != nil {
		s.Close()
		exit(err)
	}
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "dumpslow-report: %v\n", err)
	os.Exit(1)
}
