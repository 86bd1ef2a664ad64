package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"exclusivewire/internal/config"
	"exclusivewire/internal/db"
	"exclusivewire/internal/engine"
	"exclusivewire/internal/migrate"
	"exclusivewire/internal/server"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	handler, err := server.New(server.Config{
		Engine: eng,
		Auth: server.AuthConfig{
			JWTSecret:             "test-secret",
			AllowLegacyUserHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build server: %v", err)
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return testServer{
		URL:    "http://" + ln.Addr().String() + "/v0",
		Engine: eng,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (ts testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func asUser(userID string) map[string]string {
	return map[string]string{"X-User-Id": userID}
}

func (ts testServer) seedCompany(t *testing.T, id string) {
	t.Helper()
	resp, data := ts.do(t, http.MethodPost, "/users", map[string]any{
		"id":           id,
		"name":         "Acme " + id,
		"role":         "company",
		"company_name": "Acme Corp",
	}, asUser(id))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed company: %d %s", resp.StatusCode, data)
	}
}

func (ts testServer) seedJournalist(t *testing.T, id string, beats ...string) {
	t.Helper()
	if len(beats) == 0 {
		beats = []string{"Technology"}
	}
	resp, data := ts.do(t, http.MethodPost, "/users", map[string]any{
		"id":          id,
		"name":        "Reporter " + id,
		"role":        "journalist",
		"beat_tags":   beats,
		"publication": "The Daily Wire Report",
	}, asUser(id))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed journalist: %d %s", resp.StatusCode, data)
	}
}

func (ts testServer) seedAnnouncement(t *testing.T, companyID, plan string, fee int64) string {
	t.Helper()
	resp, data := ts.do(t, http.MethodPost, "/announcements", map[string]any{
		"title":                "Series B Raise",
		"summary":              "Acme raises a round",
		"full_content":         "Acme Corp today announced its Series B.",
		"journalist_beat_tags": []string{"Technology"},
		"embargo_at":           "2025-07-01T09:00:00Z",
		"plan":                 plan,
		"fee":                  fee,
	}, asUser(companyID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed announcement: %d %s", resp.StatusCode, data)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode announcement: %v", err)
	}
	return out.ID
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope %s: %v", data, err)
	}
	return env
}

func TestHealthIsOpen(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.do(t, http.MethodGet, "/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", resp.StatusCode, data)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.do(t, http.MethodGet, "/announcements", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	env := decodeError(t, data)
	if env.Error.Code != "unauthorized" {
		t.Fatalf("code = %q, want unauthorized", env.Error.Code)
	}
}

func TestClaimLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCompany(t, "co-1")
	ts.seedJournalist(t, "j-1")
	ts.seedJournalist(t, "j-2")
	id := ts.seedAnnouncement(t, "co-1", "Premium", 1000)

	resp, data := ts.do(t, http.MethodPost, "/announcements/"+id+"/claim", nil, asUser("j-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: %d %s", resp.StatusCode, data)
	}
	var claimed struct {
		Announcement struct {
			Status    string  `json:"status"`
			ClaimedBy *string `json:"claimed_by"`
		} `json:"announcement"`
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(data, &claimed); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if claimed.Announcement.Status != "claimed" || claimed.ChatID == "" {
		t.Fatalf("claim result = %s chat %q", claimed.Announcement.Status, claimed.ChatID)
	}

	// a losing second claim conflicts
	resp, data = ts.do(t, http.MethodPost, "/announcements/"+id+"/claim", nil, asUser("j-2"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second claim: %d %s", resp.StatusCode, data)
	}
	if env := decodeError(t, data); env.Error.Code != "already_claimed" {
		t.Fatalf("code = %q, want already_claimed", env.Error.Code)
	}

	resp, data = ts.do(t, http.MethodPost, "/announcements/"+id+"/publish", map[string]any{
		"published_url": "https://news.example/story",
	}, asUser("j-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish: %d %s", resp.StatusCode, data)
	}

	resp, data = ts.do(t, http.MethodGet, "/announcements/"+id+"/payment", nil, asUser("co-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment: %d %s", resp.StatusCode, data)
	}
	var payment struct {
		Status      string  `json:"status"`
		PayoutSplit int     `json:"payout_split"`
		PayoutTo    *string `json:"payout_to"`
	}
	if err := json.Unmarshal(data, &payment); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if payment.Status != "completed" || payment.PayoutSplit != 30 || payment.PayoutTo == nil || *payment.PayoutTo != "j-1" {
		t.Fatalf("payment = %+v, want completed/30/j-1", payment)
	}

	// replaying publish conflicts and names the transition
	resp, data = ts.do(t, http.MethodPost, "/announcements/"+id+"/publish", map[string]any{
		"published_url": "https://news.example/other",
	}, asUser("j-1"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double publish: %d %s", resp.StatusCode, data)
	}
	env := decodeError(t, data)
	if env.Error.Code != "invalid_transition" {
		t.Fatalf("code = %q, want invalid_transition", env.Error.Code)
	}
	if env.Error.Details["from"] != "published" {
		t.Fatalf("details = %v", env.Error.Details)
	}
}

func TestClaimWithoutMatchingBeat(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCompany(t, "co-1")
	ts.seedJournalist(t, "j-sports", "Sports")
	id := ts.seedAnnouncement(t, "co-1", "Basic", 0)

	resp, data := ts.do(t, http.MethodPost, "/announcements/"+id+"/claim", nil, asUser("j-sports"))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d %s", resp.StatusCode, data)
	}
	env := decodeError(t, data)
	if env.Error.Code != "no_matching_beat" {
		t.Fatalf("code = %q, want no_matching_beat", env.Error.Code)
	}
	required, ok := env.Error.Details["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "Technology" {
		t.Fatalf("details = %v", env.Error.Details)
	}
}

func TestAnnouncementDetailAccess(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCompany(t, "co-1")
	ts.seedJournalist(t, "j-tech", "Technology")
	ts.seedJournalist(t, "j-sports", "Sports")
	id := ts.seedAnnouncement(t, "co-1", "Basic", 0)

	resp, data := ts.do(t, http.MethodGet, "/announcements/"+id, nil, asUser("j-tech"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("matching journalist: %d %s", resp.StatusCode, data)
	}
	resp, data = ts.do(t, http.MethodGet, "/announcements/"+id, nil, asUser("j-sports"))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("off-beat journalist: %d %s", resp.StatusCode, data)
	}
	if env := decodeError(t, data); env.Error.Code != "forbidden" {
		t.Fatalf("code = %q, want forbidden", env.Error.Code)
	}
}

func TestMatchesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCompany(t, "co-1")
	ts.seedJournalist(t, "j-1", "Technology")
	id := ts.seedAnnouncement(t, "co-1", "Basic", 0)

	resp, data := ts.do(t, http.MethodGet, "/announcements/"+id+"/matches", nil, asUser("co-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("matches: %d %s", resp.StatusCode, data)
	}
	var matches []struct {
		JournalistID  string   `json:"journalist_id"`
		Score         int      `json:"score"`
		MatchingBeats []string `json:"matching_beats"`
	}
	if err := json.Unmarshal(data, &matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) != 1 || matches[0].JournalistID != "j-1" || matches[0].Score <= 0 {
		t.Fatalf("matches = %+v", matches)
	}

	resp, _ = ts.do(t, http.MethodGet, "/announcements/"+id+"/matches", nil, asUser("j-1"))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("journalist asking for matches: %d", resp.StatusCode)
	}
}

func TestChatOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCompany(t, "co-1")
	ts.seedJournalist(t, "j-1")
	ts.seedJournalist(t, "j-2")
	id := ts.seedAnnouncement(t, "co-1", "Basic", 0)

	if resp, data := ts.do(t, http.MethodPost, "/announcements/"+id+"/claim", nil, asUser("j-1")); resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: %d %s", resp.StatusCode, data)
	}

	resp, data := ts.do(t, http.MethodPost, "/announcements/"+id+"/chat", map[string]any{
		"message": "When can you publish?",
	}, asUser("co-1"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post chat: %d %s", resp.StatusCode, data)
	}

	resp, data = ts.do(t, http.MethodGet, "/announcements/"+id+"/chat", nil, asUser("j-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get chat: %d %s", resp.StatusCode, data)
	}
	var thread struct {
		Messages []struct {
			SenderID string `json:"sender_id"`
			Body     string `json:"body"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &thread); err != nil {
		t.Fatalf("decode thread: %v", err)
	}
	if len(thread.Messages) != 2 {
		t.Fatalf("messages = %d, want seed + reply", len(thread.Messages))
	}
	if thread.Messages[0].Body != engine.ClaimSeedMessage {
		t.Fatalf("seed message = %q", thread.Messages[0].Body)
	}

	// uninvolved journalist is shut out
	resp, _ = ts.do(t, http.MethodGet, "/announcements/"+id+"/chat", nil, asUser("j-2"))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider chat read: %d", resp.StatusCode)
	}
}

func TestDevLoginAndBearerAuth(t *testing.T) {
	ts := newTestServer(t)
	ts.seedJournalist(t, "j-1")

	resp, data := ts.do(t, http.MethodPost, "/auth/dev/login", map[string]any{"user_id": "j-1"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", resp.StatusCode, data)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("decode login: %v %s", err, data)
	}

	resp, data = ts.do(t, http.MethodGet, "/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me with bearer: %d %s", resp.StatusCode, data)
	}
	var me struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &me); err != nil || me.ID != "j-1" {
		t.Fatalf("me = %s", data)
	}

	resp, _ = ts.do(t, http.MethodGet, "/me", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage bearer: %d", resp.StatusCode)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t)
	ts.seedJournalist(t, "j-1")

	resp, data := ts.do(t, http.MethodPost, "/apikeys", map[string]any{
		"user_id": "j-1",
		"name":    "ci",
	}, asUser("j-1"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", resp.StatusCode, data)
	}
	var key struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &key); err != nil || key.Key == "" {
		t.Fatalf("decode key: %v %s", err, data)
	}

	resp, data = ts.do(t, http.MethodGet, "/me", nil, map[string]string{"X-Api-Key": key.Key})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me with api key: %d %s", resp.StatusCode, data)
	}

	resp, _ = ts.do(t, http.MethodGet, "/me", nil, map[string]string{"X-Api-Key": "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad api key: %d", resp.StatusCode)
	}
}

func TestUnknownLegacyUserIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.do(t, http.MethodGet, "/me", nil, asUser("ghost"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d %s", resp.StatusCode, data)
	}
	if env := decodeError(t, data); env.Error.Message != "unknown user" {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestEventsEndpointFilters(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCompany(t, "co-1")
	ts.seedJournalist(t, "j-1")
	id := ts.seedAnnouncement(t, "co-1", "Basic", 0)
	if resp, data := ts.do(t, http.MethodPost, "/announcements/"+id+"/claim", nil, asUser("j-1")); resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: %d %s", resp.StatusCode, data)
	}

	path := fmt.Sprintf("/events?entity_kind=announcement&entity_id=%s", id)
	resp, data := ts.do(t, http.MethodGet, path, nil, asUser("co-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", resp.StatusCode, data)
	}
	var page struct {
		Items []struct {
			Type     string `json:"type"`
			EntityID string `json:"entity_id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("events = %d, want created + claimed", len(page.Items))
	}
	for _, evt := range page.Items {
		if evt.EntityID != id {
			t.Fatalf("event for %s leaked into filter", evt.EntityID)
		}
	}
}
