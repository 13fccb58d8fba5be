package checker

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/AppWatch/internal/integrations/catalog"
	"github.com/BearBump/AppWatch/internal/metrics"
	"github.com/BearBump/AppWatch/internal/models"
	"golang.org/x/sync/errgroup"
)

// BatchSize caps concurrent outbound lookups for one check.
const BatchSize = 8

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Checker struct {
	prober  catalog.Prober
	rl      RateLimiter
	metrics metrics.Recorder

	batchSize          int
	rateLimitPerMinute int64
	throttleWait       time.Duration
	now                func() time.Time
}

func New(prober catalog.Prober, rl RateLimiter) *Checker {
	return &Checker{
		prober:       prober,
		rl:           rl,
		metrics:      metrics.Noop{},
		batchSize:    BatchSize,
		throttleWait: 500 * time.Millisecond,
		now:          time.Now,
	}
}

func (c *Checker) WithRateLimit(perMinute int64) *Checker {
	if perMinute > 0 {
		c.rateLimitPerMinute = perMinute
	}
	return c
}

func (c *Checker) WithMetrics(m metrics.Recorder) *Checker {
	if m != nil {
		c.metrics = m
	}
	return c
}

// CheckAll probes every region in batches of BatchSize. Batches run one after the
// other; probes inside a batch run concurrently. Verdicts keep the region order.
func (c *Checker) CheckAll(ctx context.Context, id models.Identity, regions []string) models.CheckResult {
	res := models.CheckResult{
		Identity:       id,
		RegionsChecked: len(regions),
		Verdicts:       make([]models.RegionVerdict, len(regions)),
	}

	for start := 0; start < len(regions); start += c.batchSize {
		end := min(start+c.batchSize, len(regions))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				res.Verdicts[i] = c.probeOne(ctx, regions[i], id)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, v := range res.Verdicts {
		switch {
		case v.Error != "":
			res.ErrorCount++
			c.metrics.ObserveProbe(metrics.OutcomeError)
		case v.IsLive:
			res.LiveCount++
			c.metrics.ObserveProbe(metrics.OutcomeLive)
		default:
			res.NotLiveCount++
			c.metrics.ObserveProbe(metrics.OutcomeNotLive)
		}
	}
	return res
}

func (c *Checker) probeOne(ctx context.Context, region string, id models.Identity) models.RegionVerdict {
	c.throttle(ctx)

	v := c.prober.Probe(ctx, region, id)
	v.Region = region
	if v.Error != "" {
		v.IsLive = false
	}
	return v
}

// throttle never fails a probe: limiter errors are logged and ignored.
func (c *Checker) throttle(ctx context.Context) {
	if c.rl == nil || c.rateLimitPerMinute <= 0 {
		return
	}
	key := "rl:catalog:" + c.now().UTC().Format("200601021504")
	allowed, n, err := c.rl.Allow(ctx, key, c.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("catalog rate limiter unavailable", "error", err.Error())
		return
	}
	if allowed {
		return
	}
	slog.Warn("catalog rate limit exceeded", "count", n)
	select {
	case <-ctx.Done():
	case <-time.After(c.throttleWait):
	}
}

// Launch is the display data taken from a live check.
type Launch struct {
	Name    string
	Link    string
	IconURL string
	Region  string
}

// LaunchInfo picks the name from the first live verdict; link and icon come from
// the first live verdict that has one. Without any view URL the link is built
// from the identity against the "us" storefront.
func LaunchInfo(res models.CheckResult) (Launch, bool) {
	var out Launch
	found := false
	for _, v := range res.Verdicts {
		if !v.IsLive {
			continue
		}
		if !found {
			found = true
			out.Name = v.Name
			out.Region = v.Region
		}
		if out.Link == "" && v.ViewURL != "" {
			out.Link = v.ViewURL
		}
		if out.IconURL == "" && v.IconURL != "" {
			out.IconURL = v.IconURL
		}
	}
	if !found {
		return Launch{}, false
	}
	if out.Name == "" {
		out.Name = res.Identity.ID
		if out.Name == "" {
			out.Name = res.Identity.BundleID
		}
	}
	if out.Link == "" {
		out.Link = catalog.FallbackStoreLink(res.Identity, "us")
	}
	return out, true
}
