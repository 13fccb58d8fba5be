package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdentity_Key(t *testing.T) {
	require.Equal(t, "id:123456789", Identity{ID: "123456789"}.Key())
	require.Equal(t, "bid:com.example.app", Identity{BundleID: "com.example.app"}.Key())

	// numeric bundle ids stay in their own key space
	require.NotEqual(t, Identity{ID: "12345"}.Key(), Identity{BundleID: "12345"}.Key())
}

func TestIdentity_Validate(t *testing.T) {
	require.NoError(t, Identity{ID: "123"}.Validate())
	require.NoError(t, Identity{BundleID: "com.x"}.Validate())
	require.ErrorIs(t, Identity{}.Validate(), ErrInvalidIdentity)
	require.ErrorIs(t, Identity{ID: "1", BundleID: "b"}.Validate(), ErrInvalidIdentity)
	require.Error(t, Identity{ID: "12a"}.Validate())
}

func TestIdentityFromKey(t *testing.T) {
	id, err := IdentityFromKey("id:42")
	require.NoError(t, err)
	require.Equal(t, Identity{ID: "42"}, id)

	id, err = IdentityFromKey("bid:com.x")
	require.NoError(t, err)
	require.Equal(t, Identity{BundleID: "com.x"}, id)

	_, err = IdentityFromKey("nope")
	require.Error(t, err)
}

func TestCheckResult_Helpers(t *testing.T) {
	r := CheckResult{
		RegionsChecked: 3,
		Verdicts: []RegionVerdict{
			{Region: "us", IsLive: true},
			{Region: "gb"},
			{Region: "fr", Error: "HTTP 500"},
		},
		LiveCount: 1, NotLiveCount: 1, ErrorCount: 1,
	}
	require.True(t, r.IsLive())
	require.False(t, r.AllFailed())
	require.Equal(t, []string{"us"}, r.LiveRegions())

	failed := CheckResult{RegionsChecked: 2, ErrorCount: 2}
	require.True(t, failed.AllFailed())
	require.False(t, CheckResult{}.AllFailed())

	require.True(t, failed.Inconclusive())
	require.True(t, CheckResult{RegionsChecked: 3, ErrorCount: 2, NotLiveCount: 1}.Inconclusive())
	require.False(t, CheckResult{RegionsChecked: 3, NotLiveCount: 3}.Inconclusive())
	require.False(t, r.Inconclusive())
}

func TestMonthKey(t *testing.T) {
	require.Equal(t, "2025-02", MonthKey(time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC)))
}
