package watch_api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	cachemocks "github.com/BearBump/AppWatch/internal/cache/mocks"
	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/intake"
	intakemocks "github.com/BearBump/AppWatch/internal/services/intake/mocks"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	lifecyclemocks "github.com/BearBump/AppWatch/internal/services/lifecycle/mocks"
	"github.com/BearBump/AppWatch/internal/services/report"
	"github.com/BearBump/AppWatch/internal/storage/memstore"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	testKey    = "k3y"
	testSecret = "s3cret"
)

type recordingHandler struct {
	mu   sync.Mutex
	msgs []intake.Message
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg intake.Message) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return intake.ResultOK, nil
}

func (h *recordingHandler) messages() []intake.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]intake.Message(nil), h.msgs...)
}

type APISuite struct {
	suite.Suite

	now      time.Time
	store    *memstore.Store
	checker  *lifecyclemocks.MockChecker
	notifier *lifecyclemocks.MockNotifier
	subs     *intakemocks.MockSubscriber
	cache    *cachemocks.MockBytesCache
	handler  *recordingHandler
	api      *API
	srv      *httptest.Server
}

func (s *APISuite) SetupTest() {
	s.now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store = memstore.New()
	s.checker = &lifecyclemocks.MockChecker{}
	s.notifier = &lifecyclemocks.MockNotifier{}
	s.subs = &intakemocks.MockSubscriber{}
	s.cache = &cachemocks.MockBytesCache{}
	s.handler = &recordingHandler{}

	clock := func() time.Time { return s.now }
	mgr := lifecycle.New(s.store, s.checker, s.notifier).WithClock(clock)
	s.api = New(Deps{
		Checker:    s.checker,
		Subscriber: s.subs,
		Messages:   s.handler,
		Events:     s.store,
		Sweeper:    mgr,
		Reports:    report.New(s.store, s.notifier),
		Cache:      s.cache,
	}).WithSettings(Settings{
		APIKey:          testKey,
		SigningSecret:   testSecret,
		SubmitChannelID: "CSUBMIT",
		CacheTTL:        time.Minute,
	}).WithClock(clock)
	s.srv = httptest.NewServer(s.api.Routes())
}

func (s *APISuite) TearDownTest() {
	s.srv.Close()
}

func (s *APISuite) do(method, path, body string, hdr map[string]string) *http.Response {
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func signAt(at time.Time, body string) map[string]string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("v0:" + ts + ":" + body))
	return map[string]string{
		"X-Slack-Request-Timestamp": ts,
		"X-Slack-Signature":         "v0=" + hex.EncodeToString(mac.Sum(nil)),
	}
}

// signed uses the wall clock: the signature window is checked against real time.
func (s *APISuite) signed(body string) map[string]string {
	return signAt(time.Now(), body)
}

func readBody(t *testing.T, resp *http.Response) string {
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (s *APISuite) TestCheck_MissThenCached() {
	id := models.Identity{ID: "1234567890"}
	res := models.CheckResult{Identity: id, RegionsChecked: 2, LiveCount: 1, NotLiveCount: 1,
		Verdicts: []models.RegionVerdict{{Region: "us", IsLive: true, Name: "Demo"}, {Region: "gb"}}}

	s.cache.On("Get", mock.Anything, "check:v1:id:1234567890:us,gb").Return(nil, false, nil).Once()
	s.checker.On("CheckAll", mock.Anything, id, []string{"us", "gb"}).Return(res).Once()
	s.cache.On("Set", mock.Anything, "check:v1:id:1234567890:us,gb", mock.Anything, time.Minute).Return(nil).Once()

	resp := s.do(http.MethodGet, "/v1/check?id=1234567890&countries=US,gb,zz", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("public, max-age=60, s-maxage=300", resp.Header.Get("Cache-Control"))
	s.Equal("MISS", resp.Header.Get("X-Cache"))

	var got models.CheckResult
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&got))
	s.Equal(1, got.LiveCount)
	s.Equal(got.RegionsChecked, got.LiveCount+got.NotLiveCount+got.ErrorCount)

	s.cache.On("Get", mock.Anything, "check:v1:id:1234567890:us,gb").Return([]byte(`{"liveCount":1}`), true, nil).Once()
	resp = s.do(http.MethodPost, "/v1/check", `{"id":"1234567890","countries":["us","gb"]}`, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("HIT", resp.Header.Get("X-Cache"))
	s.checker.AssertNumberOfCalls(s.T(), "CheckAll", 1)
	s.cache.AssertExpectations(s.T())
}

func (s *APISuite) TestCheck_BadIdentity() {
	resp := s.do(http.MethodGet, "/v1/check?id=1&bundleId=com.x", "", nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodPost, "/v1/check", `{"countries":"us"}`, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.checker.AssertNotCalled(s.T(), "CheckAll", mock.Anything, mock.Anything, mock.Anything)
}

func (s *APISuite) TestMonitors_RequireAPIKey() {
	for _, key := range []string{"", "wrong"} {
		resp := s.do(http.MethodPost, "/v1/monitors", `{"id":"55555"}`, map[string]string{"X-API-Key": key})
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}
	s.subs.AssertNotCalled(s.T(), "Subscribe", mock.Anything, mock.Anything)
}

func (s *APISuite) TestMonitors_Subscribe() {
	want := lifecycle.SubscribeRequest{
		Identity:  models.Identity{BundleID: "com.example.demo"},
		Regions:   []string{"us", "gb"},
		Submitter: "U1",
		Source:    "api",
	}
	s.subs.On("Subscribe", mock.Anything, want).
		Return(lifecycle.SubscribeResult{Outcome: lifecycle.OutcomeSubscribed, Key: "bid:com.example.demo"}, nil).Once()

	resp := s.do(http.MethodPost, "/v1/monitors",
		`{"bundleId":"com.example.demo","countries":"us,gb","submitter":"U1"}`,
		map[string]string{"X-API-Key": testKey})
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Contains(readBody(s.T(), resp), `"outcome":"subscribed"`)
	s.subs.AssertExpectations(s.T())
}

func (s *APISuite) TestSlackEvents_BadSignature() {
	body := `{"type":"url_verification","challenge":"abc"}`
	hdr := s.signed(body)
	hdr["X-Slack-Signature"] = "v0=deadbeef"

	resp := s.do(http.MethodPost, "/slack/events", body, hdr)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Contains(readBody(s.T(), resp), "bad signature")

	resp = s.do(http.MethodPost, "/slack/events", body, signAt(time.Now().Add(-10*time.Minute), body))
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestSlackEvents_InvalidJSON() {
	body := `{"type":`
	resp := s.do(http.MethodPost, "/slack/events", body, s.signed(body))
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestSlackEvents_Challenge() {
	body := `{"type":"url_verification","challenge":"abc"}`
	resp := s.do(http.MethodPost, "/slack/events", body, s.signed(body))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"challenge":"abc"}`, readBody(s.T(), resp))
}

func (s *APISuite) TestSlackEvents_MessageFlow() {
	body := `{"type":"event_callback","event_id":"Ev1","event":{"type":"message","text":"https://apps.apple.com/us/app/x/id55555","user":"U1","channel":"CSUBMIT"}}`

	resp := s.do(http.MethodPost, "/slack/events", body, s.signed(body))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(intake.ResultOK, readBody(s.T(), resp))

	resp = s.do(http.MethodPost, "/slack/events", body, s.signed(body))
	s.Equal(EventDuplicate, readBody(s.T(), resp))

	retry := s.signed(body)
	retry["X-Slack-Retry-Num"] = "1"
	resp = s.do(http.MethodPost, "/slack/events", body, retry)
	s.Equal(EventRetryAck, readBody(s.T(), resp))

	msgs := s.handler.messages()
	s.Require().Len(msgs, 1)
	s.Equal(intake.Message{Text: "https://apps.apple.com/us/app/x/id55555", User: "U1", Channel: "CSUBMIT"}, msgs[0])
}

func (s *APISuite) TestSlackEvents_Filters() {
	other := `{"type":"event_callback","event_id":"Ev2","event":{"type":"message","text":"hi","user":"U1","channel":"COTHER"}}`
	resp := s.do(http.MethodPost, "/slack/events", other, s.signed(other))
	s.Equal(EventOtherChannel, readBody(s.T(), resp))

	edited := `{"type":"event_callback","event_id":"Ev3","event":{"type":"message","subtype":"message_changed","text":"hi","channel":"CSUBMIT"}}`
	resp = s.do(http.MethodPost, "/slack/events", edited, s.signed(edited))
	s.Equal(EventIgnored, readBody(s.T(), resp))

	s.Empty(s.handler.messages())
}

func (s *APISuite) TestSlackCommand_AcksThenRunsDetached() {
	form := url.Values{"text": {"https://apps.apple.com/us/app/x/id55555"}, "user_id": {"U9"}, "channel_id": {"C9"}}.Encode()
	hdr := s.signed(form)
	hdr["Content-Type"] = "application/x-www-form-urlencoded"

	resp := s.do(http.MethodPost, "/slack/commands", form, hdr)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(readBody(s.T(), resp), `"response_type":"ephemeral"`)

	s.api.Wait()
	msgs := s.handler.messages()
	s.Require().Len(msgs, 1)
	s.Equal("U9", msgs[0].User)
}

func (s *APISuite) TestSlackCommand_EmptyTextShowsUsage() {
	form := url.Values{"text": {" "}}.Encode()
	resp := s.do(http.MethodPost, "/slack/commands", form, s.signed(form))
	s.Contains(readBody(s.T(), resp), "Usage")
	s.api.Wait()
	s.Empty(s.handler.messages())
}

func (s *APISuite) TestAdmin_ReconcileAndDashboard() {
	ctx := context.Background()
	_, err := s.store.InsertAnnouncement(ctx, &models.Announcement{
		Identity: models.Identity{ID: "55555"}, DisplayName: "Demo", AnnouncedAt: s.now.AddDate(0, 0, -2), MonthKey: "2026-06",
	})
	s.Require().NoError(err)
	auth := map[string]string{"X-API-Key": testKey}

	resp := s.do(http.MethodGet, "/admin/dashboard", "", auth)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(readBody(s.T(), resp), `"status":"untracked"`)

	resp = s.do(http.MethodPost, "/admin/reconcile", "", auth)
	s.Equal(http.StatusOK, resp.StatusCode)
	var st lifecycle.SweepStats
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&st))
	s.Equal(1, st.Created)

	resp = s.do(http.MethodGet, "/admin/dashboard", "", auth)
	s.Contains(readBody(s.T(), resp), `"status":"unknown"`)

	resp = s.do(http.MethodPost, "/admin/reconcile", "", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestAdmin_Report() {
	auth := map[string]string{"X-API-Key": testKey}

	resp := s.do(http.MethodGet, "/admin/report?month=2026-05", "", auth)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(readBody(s.T(), resp), "No launches in May 2026")

	resp = s.do(http.MethodGet, "/admin/report?month=May", "", auth)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	s.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Channel == models.ChannelReport && strings.Contains(n.Text, "June 2026")
	})).Return(nil).Once()
	resp = s.do(http.MethodPost, "/admin/report", "", auth)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.notifier.AssertExpectations(s.T())
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func TestRegionList_AcceptsArrayAndString(t *testing.T) {
	var req checkRequest
	require.NoError(t, json.Unmarshal([]byte(`{"countries":["us","gb"]}`), &req))
	require.Equal(t, regionList{"us", "gb"}, req.Countries)

	require.NoError(t, json.Unmarshal([]byte(`{"countries":"us, gb"}`), &req))
	require.Equal(t, regionList{"us", "gb"}, req.Countries)

	require.Error(t, json.Unmarshal([]byte(`{"countries":5}`), &req))
}
