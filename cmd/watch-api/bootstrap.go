package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/AppWatch/config"
	watchapi "github.com/BearBump/AppWatch/internal/api/watch_api"
	"github.com/BearBump/AppWatch/internal/bootstrap"
	"github.com/BearBump/AppWatch/internal/broker/kafka"
	"github.com/BearBump/AppWatch/internal/integrations/slack"
	"github.com/BearBump/AppWatch/internal/metrics"
	"github.com/BearBump/AppWatch/internal/services/intake"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/BearBump/AppWatch/internal/services/report"
	"github.com/prometheus/client_golang/prometheus"
)

type watchAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      watchAPIOpts
	api       *watchapi.API
	gatherer  prometheus.Gatherer
	consumer  *kafka.Consumer
	deliverer *slack.Webhooks
	closers   []func()
}

func mustBootstrapWatchAPI() *watchAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config, %v", err))
	}

	httpAddr := cfg.AppWatch.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Kafka.ConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "watch-api"
	}
	cacheTTL := time.Duration(cfg.AppWatch.CheckCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	loc, err := bootstrap.Location(cfg.AppWatch.TimeZone)
	if err != nil {
		panic(err)
	}

	st, err := bootstrap.OpenStore(cfg, 60*time.Second)
	if err != nil {
		panic(err)
	}
	app := &watchAPIApp{closers: []func(){st.Close}}

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	app.gatherer = reg

	bc, closeCache := bootstrap.NewCache(cfg)
	chk, closeChecker := bootstrap.NewChecker(cfg, rec)
	notifier, closeNotifier := bootstrap.NewNotifier(cfg)
	app.closers = append(app.closers, closeCache, closeChecker, closeNotifier)

	mgr := lifecycle.New(st, chk, notifier).
		WithSettings(bootstrap.LifecycleSettings(cfg, loc)).
		WithMetrics(rec)
	reports := report.New(st, notifier).WithSettings(bootstrap.ReportSettings(cfg, loc))

	app.api = watchapi.New(watchapi.Deps{
		Checker:    chk,
		Subscriber: mgr,
		Messages:   intake.New(mgr, notifier, cfg.Slack.UpdatesChannelName),
		Events:     st,
		Sweeper:    mgr,
		Reports:    reports,
		Cache:      bc,
	}).WithSettings(watchapi.Settings{
		APIKey:          cfg.AppWatch.APIKey,
		SigningSecret:   cfg.Slack.SigningSecret,
		SubmitChannelID: cfg.Slack.SubmitChannelID,
		Regions:         mgr.Regions(),
		CacheTTL:        cacheTTL,
	}).WithMetrics(rec)

	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		app.consumer = kafka.NewConsumer(brokers, cfg.NotificationsTopic(), consumerGroup)
		app.deliverer = bootstrap.NewWebhooks(cfg)
	}

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = watchAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		topic:         cfg.NotificationsTopic(),
		consumerGroup: consumerGroup,
	}
	return app
}

func (a *watchAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *watchAPIApp) Run() error {
	// A nil *kafka.Consumer must not end up in a non-nil interface.
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runWatchAPI(a.ctx, a.opts, a.api, a.gatherer, consumer, a.deliverer)
}
