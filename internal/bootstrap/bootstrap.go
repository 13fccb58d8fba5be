// Package bootstrap builds the components shared by watch-api and watch-worker
// from a loaded config.
package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BearBump/AppWatch/config"
	"github.com/BearBump/AppWatch/internal/broker/kafka"
	"github.com/BearBump/AppWatch/internal/cache"
	"github.com/BearBump/AppWatch/internal/cache/memcache"
	"github.com/BearBump/AppWatch/internal/cache/rediscache"
	"github.com/BearBump/AppWatch/internal/integrations/catalog"
	"github.com/BearBump/AppWatch/internal/integrations/catalog/fake"
	"github.com/BearBump/AppWatch/internal/integrations/catalog/itunes"
	"github.com/BearBump/AppWatch/internal/integrations/slack"
	"github.com/BearBump/AppWatch/internal/metrics"
	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/checker"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/BearBump/AppWatch/internal/services/report"
	"github.com/BearBump/AppWatch/internal/storage/memstore"
	"github.com/BearBump/AppWatch/internal/storage/pgwatch"
	"github.com/pkg/errors"
)

const DefaultTimeZone = "Africa/Tunis"

// Store is what both binaries need from persistence.
type Store interface {
	lifecycle.Repository
	TryRegisterEvent(ctx context.Context, eventID string, at time.Time) (bool, error)
	Ping(ctx context.Context) error
	Close()
}

// OpenStore connects to Postgres, retrying until wait runs out. Without a
// configured database host the in-memory store is used.
func OpenStore(cfg *config.Config, wait time.Duration) (Store, error) {
	connString := cfg.PostgresConnString()
	if connString == "" {
		slog.Warn("database is not configured, using in-memory store")
		return memstore.New(), nil
	}

	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		st, err := pgwatch.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(time.Second)
	}
	return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
}

func Location(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", name)
	}
	return loc, nil
}

// RedisKeyPrefix namespaces every key AppWatch writes to Redis.
const RedisKeyPrefix = "appwatch:"

func redisOptions(cfg *config.Config) rediscache.Options {
	return rediscache.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   RedisKeyPrefix,
	}
}

func NewCache(cfg *config.Config) (cache.BytesCache, func()) {
	if cfg.RedisAddr() != "" {
		opts := redisOptions(cfg)
		rc := rediscache.NewClient(opts)
		return rediscache.New(rc, opts.Prefix), func() { _ = rc.Close() }
	}
	sizeMB := cfg.AppWatch.LocalCacheSizeMB
	if sizeMB <= 0 {
		sizeMB = 16
	}
	return memcache.New(sizeMB), func() {}
}

func NewProber(cfg *config.Config) catalog.Prober {
	if cfg.Catalog.Mode == "fake" {
		keys := make([]string, 0, len(cfg.Catalog.FakeLiveIDs))
		for _, id := range cfg.Catalog.FakeLiveIDs {
			if strings.Contains(id, ":") {
				keys = append(keys, id)
				continue
			}
			keys = append(keys, models.Identity{ID: id}.Key())
		}
		return fake.New(keys...)
	}
	return itunes.New(cfg.Catalog.LookupURL, time.Duration(cfg.Catalog.TimeoutSeconds)*time.Second)
}

// NewChecker throttles catalog lookups through Redis when it is configured.
func NewChecker(cfg *config.Config, rec metrics.Recorder) (*checker.Checker, func()) {
	perMin := int64(cfg.Catalog.RateLimitPerMinute)
	if perMin <= 0 {
		perMin = 120
	}
	prober := NewProber(cfg)
	if cfg.RedisAddr() != "" {
		opts := redisOptions(cfg)
		rc := rediscache.NewClient(opts)
		rl := rediscache.NewRateLimiter(rc, opts.Prefix)
		return checker.New(prober, rl).WithRateLimit(perMin).WithMetrics(rec), func() { _ = rc.Close() }
	}
	return checker.New(prober, nil).WithMetrics(rec), func() {}
}

func NewWebhooks(cfg *config.Config) *slack.Webhooks {
	return slack.NewWebhooks(slack.WebhookURLs{
		Updates: cfg.Slack.UpdatesWebhookURL,
		Submit:  cfg.Slack.SubmitWebhookURL,
		Report:  cfg.Slack.ReportWebhookURL,
	}, cfg.Slack.PingMode)
}

// NewNotifier publishes to Kafka when a broker is configured and posts to the
// webhooks directly otherwise.
func NewNotifier(cfg *config.Config) (lifecycle.Notifier, func()) {
	brokers := cfg.KafkaBrokers()
	if len(brokers) == 0 {
		return NewWebhooks(cfg), func() {}
	}
	p := kafka.NewProducer(brokers)
	return kafka.NewNotifier(p, cfg.NotificationsTopic()), func() { _ = p.Close() }
}

func LifecycleSettings(cfg *config.Config, loc *time.Location) lifecycle.Settings {
	return lifecycle.Settings{
		Regions:        cfg.AppWatch.Regions,
		DailyRegions:   cfg.AppWatch.DailyRegions,
		MaturationDays: cfg.AppWatch.MaturationDays,
		RecheckAfter:   time.Duration(cfg.AppWatch.RecheckAfterHours) * time.Hour,
		Location:       loc,
	}
}

func ReportSettings(cfg *config.Config, loc *time.Location) report.Settings {
	return report.Settings{
		Owner:           cfg.AppWatch.Report.Owner,
		SubmitterPayout: cfg.AppWatch.Report.SubmitterPayout,
		OwnerPayout:     cfg.AppWatch.Report.OwnerPayout,
		Currency:        cfg.AppWatch.Report.Currency,
		Location:        loc,
	}
}
