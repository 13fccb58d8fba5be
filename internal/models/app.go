package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Tracked app statuses. Confirmed and terminated are terminal.
const (
	AppStatusLive       = "live"
	AppStatusConfirmed  = "confirmed"
	AppStatusTerminated = "terminated"
	AppStatusUnknown    = "unknown"
)

var ErrInvalidIdentity = errors.New("exactly one of id or bundleId is required")

// Identity is either a numeric catalog id or a bundle id, never both.
type Identity struct {
	ID       string `json:"id,omitempty"`
	BundleID string `json:"bundleId,omitempty"`
}

func (i Identity) Validate() error {
	if (i.ID == "") == (i.BundleID == "") {
		return ErrInvalidIdentity
	}
	if i.ID != "" && strings.Trim(i.ID, "0123456789") != "" {
		return errors.Errorf("id %q is not numeric", i.ID)
	}
	return nil
}

// Key is the document key: "id:<n>" or "bid:<bundle>".
func (i Identity) Key() string {
	if i.ID != "" {
		return "id:" + i.ID
	}
	return "bid:" + i.BundleID
}

func (i Identity) String() string { return i.Key() }

func IdentityFromKey(key string) (Identity, error) {
	switch {
	case strings.HasPrefix(key, "id:"):
		return Identity{ID: strings.TrimPrefix(key, "id:")}, nil
	case strings.HasPrefix(key, "bid:"):
		return Identity{BundleID: strings.TrimPrefix(key, "bid:")}, nil
	}
	return Identity{}, errors.Errorf("bad identity key %q", key)
}

type RegionVerdict struct {
	Region                    string `json:"region"`
	IsLive                    bool   `json:"isLive"`
	Name                      string `json:"name,omitempty"`
	Publisher                 string `json:"publisher,omitempty"`
	Version                   string `json:"version,omitempty"`
	ReleaseDate               string `json:"releaseDate,omitempty"`
	CurrentVersionReleaseDate string `json:"currentVersionReleaseDate,omitempty"`
	ViewURL                   string `json:"viewUrl,omitempty"`
	IconURL                   string `json:"iconUrl,omitempty"`
	Error                     string `json:"error,omitempty"`
}

// CheckResult holds LiveCount+NotLiveCount+ErrorCount == RegionsChecked.
type CheckResult struct {
	Identity       Identity        `json:"identity"`
	RegionsChecked int             `json:"regionsChecked"`
	Verdicts       []RegionVerdict `json:"verdicts"`
	LiveCount      int             `json:"liveCount"`
	NotLiveCount   int             `json:"notLiveCount"`
	ErrorCount     int             `json:"errorCount"`
}

func (r CheckResult) IsLive() bool { return r.LiveCount > 0 }

// AllFailed reports whether no region produced an answer at all.
func (r CheckResult) AllFailed() bool {
	return r.RegionsChecked > 0 && r.ErrorCount == r.RegionsChecked
}

// Inconclusive reports a result with no live verdict where at least one region
// errored, so absence was not observed everywhere.
func (r CheckResult) Inconclusive() bool {
	return r.LiveCount == 0 && r.ErrorCount > 0
}

func (r CheckResult) LiveRegions() []string {
	out := make([]string, 0, r.LiveCount)
	for _, v := range r.Verdicts {
		if v.IsLive {
			out = append(out, v.Region)
		}
	}
	return out
}

// Monitor is a pending-launch subscription.
type Monitor struct {
	Identity             Identity
	Regions              []string
	Submitter            string
	Source               string
	LastKnownLiveRegions []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type TrackedApp struct {
	Identity       Identity   `json:"identity"`
	DisplayName    string     `json:"displayName"`
	StoreLink      string     `json:"storeLink"`
	Submitter      string     `json:"submitter,omitempty"`
	Status         string     `json:"status"`
	FirstLiveAt    time.Time  `json:"firstLiveAt"`
	LastCheckedAt  *time.Time `json:"lastCheckedAt,omitempty"`
	TerminationAt  *time.Time `json:"terminationAt,omitempty"`
	ConfirmationAt *time.Time `json:"confirmationAt,omitempty"`
}

func (t *TrackedApp) IsTerminal() bool {
	return t.Status == AppStatusConfirmed || t.Status == AppStatusTerminated
}

// Announcement is written once, at the live transition. NotifiedAt is set once
// the launch notice has been handed to the notifier.
type Announcement struct {
	Identity    Identity   `json:"identity"`
	DisplayName string     `json:"displayName"`
	StoreLink   string     `json:"storeLink"`
	IconURL     string     `json:"iconUrl,omitempty"`
	Submitter   string     `json:"submitter,omitempty"`
	AnnouncedAt time.Time  `json:"announcedAt"`
	MonthKey    string     `json:"monthKey"`
	NotifiedAt  *time.Time `json:"notifiedAt,omitempty"`
}

const MonthKeyLayout = "2006-01"

func MonthKey(t time.Time) string { return t.Format(MonthKeyLayout) }
