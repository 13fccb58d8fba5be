package catalog

import (
	"context"

	"github.com/BearBump/AppWatch/internal/models"
)

// Prober looks an identity up in one storefront. Implementations never return an
// error: transport failures are reported through RegionVerdict.Error.
type Prober interface {
	Probe(ctx context.Context, region string, id models.Identity) models.RegionVerdict
}

// FallbackStoreLink is the link used when no storefront returned a view URL.
func FallbackStoreLink(id models.Identity, region string) string {
	if id.ID == "" {
		return ""
	}
	if region == "" {
		region = "us"
	}
	return "https://apps.apple.com/" + region + "/app/id" + id.ID
}
