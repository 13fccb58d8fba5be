package fake

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/BearBump/AppWatch/internal/integrations/catalog"
	"github.com/BearBump/AppWatch/internal/models"
)

// Catalog is a local stand-in for the lookup endpoint. Identities marked live are
// reported live in every region; others are not found. Region failures can be
// injected per region code.
type Catalog struct {
	mu     sync.Mutex
	live   map[string]bool
	failed map[string]string
	calls  int
}

func New(liveKeys ...string) *Catalog {
	c := &Catalog{live: map[string]bool{}, failed: map[string]string{}}
	for _, k := range liveKeys {
		c.live[k] = true
	}
	return c
}

func (c *Catalog) SetLive(id models.Identity, live bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[id.Key()] = live
}

func (c *Catalog) FailRegion(region, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[region] = msg
}

func (c *Catalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Catalog) Probe(ctx context.Context, region string, id models.Identity) models.RegionVerdict {
	c.mu.Lock()
	c.calls++
	live := c.live[id.Key()]
	failMsg, failed := c.failed[region]
	c.mu.Unlock()

	v := models.RegionVerdict{Region: region}
	if failed {
		v.Error = failMsg
		return v
	}
	if !live {
		return v
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(id.Key()))

	v.IsLive = true
	v.Name = "Fake App " + id.Key()
	v.Publisher = "Fake Publisher"
	v.Version = "1.0"
	v.ViewURL = catalog.FallbackStoreLink(id, region)
	if h.Sum32()%2 == 0 {
		v.IconURL = "https://example.invalid/icon/" + id.Key() + ".png"
	}
	return v
}
