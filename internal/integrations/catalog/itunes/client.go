package itunes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/pkg/errors"
)

const DefaultLookupURL = "https://itunes.apple.com/lookup"

type Client struct {
	lookupURL string
	httpc     *http.Client
}

func New(lookupURL string, timeout time.Duration) *Client {
	if lookupURL == "" {
		lookupURL = DefaultLookupURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		lookupURL: lookupURL,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type lookupResult struct {
	TrackName                 string `json:"trackName"`
	SellerName                string `json:"sellerName"`
	Version                   string `json:"version"`
	ReleaseDate               string `json:"releaseDate"`
	CurrentVersionReleaseDate string `json:"currentVersionReleaseDate"`
	TrackViewURL              string `json:"trackViewUrl"`
	ArtworkURL100             string `json:"artworkUrl100"`
	ArtworkURL60              string `json:"artworkUrl60"`
}

type lookupResp struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

func (c *Client) Probe(ctx context.Context, region string, id models.Identity) models.RegionVerdict {
	v := models.RegionVerdict{Region: region}

	res, err := c.lookup(ctx, region, id)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	if res == nil {
		return v
	}

	v.IsLive = true
	v.Name = res.TrackName
	v.Publisher = res.SellerName
	v.Version = res.Version
	v.ReleaseDate = res.ReleaseDate
	v.CurrentVersionReleaseDate = res.CurrentVersionReleaseDate
	v.ViewURL = res.TrackViewURL
	v.IconURL = res.ArtworkURL100
	if v.IconURL == "" {
		v.IconURL = res.ArtworkURL60
	}
	return v
}

// lookup returns (nil, nil) when the storefront has no such app.
func (c *Client) lookup(ctx context.Context, region string, id models.Identity) (*lookupResult, error) {
	u, err := url.Parse(c.lookupURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse lookup url")
	}
	q := u.Query()
	q.Set("country", region)
	if id.ID != "" {
		q.Set("id", id.ID)
	}
	if id.BundleID != "" {
		q.Set("bundleId", id.BundleID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("HTTP %d", resp.StatusCode)
	}

	var lr lookupResp
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if lr.ResultCount <= 0 || len(lr.Results) == 0 {
		return nil, nil
	}
	return &lr.Results[0], nil
}
