package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	watchapi "github.com/BearBump/AppWatch/internal/api/watch_api"
	"github.com/BearBump/AppWatch/internal/broker/kafka"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type watchAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

// runWatchAPI serves HTTP and, when a consumer is given, delivers queued
// notifications to the webhooks.
func runWatchAPI(ctx context.Context, opts watchAPIOpts, api *watchapi.API, gatherer prometheus.Gatherer,
	consumer kafkaConsumer, deliverer kafka.Deliverer) error {
	if opts.swaggerPath == "" {
		return errors.New("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return errors.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, newRouter(api, gatherer, opts.swaggerPath))
	}()

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			if err := consumer.Consume(ctx, kafka.DeliveryHandler(deliverer, 3, time.Second)); err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		api.Wait()
		return ctx.Err()
	case err := <-httpErr:
		if err == nil {
			api.Wait()
			return ctx.Err()
		}
		return err
	}
}

func newRouter(api *watchapi.API, gatherer prometheus.Gatherer, swaggerPath string) chi.Router {
	r := chi.NewRouter()
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Mount("/", api.Routes())
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
