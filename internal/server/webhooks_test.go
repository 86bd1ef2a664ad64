package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"exclusivewire/internal/config"
	"exclusivewire/internal/db"
	"exclusivewire/internal/engine"
	"exclusivewire/internal/migrate"
)

type recordedDelivery struct {
	Event  webhookEvent
	Header http.Header
}

type webhookSink struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
}

func (s *webhookSink) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var evt webhookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.deliveries = append(s.deliveries, recordedDelivery{Event: evt, Header: r.Header.Clone()})
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *webhookSink) all() []recordedDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedDelivery(nil), s.deliveries...)
}

func newWebhookTestEngine(t *testing.T) engine.Engine {
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
	return eng
}

func TestWebhookDispatcherDeliversNewEvents(t *testing.T) {
	eng := newWebhookTestEngine(t)
	sink := &webhookSink{}
	receiver := httptest.NewServer(sink.handler())
	defer receiver.Close()

	hook := config.Webhook{URL: receiver.URL, Secret: "s3cret"}
	d := &webhookDispatcher{
		engine:   eng,
		webhooks: []config.Webhook{hook},
		client:   receiver.Client(),
		cursors:  map[int]int64{},
	}

	ctx := context.Background()
	if _, err := eng.CreateUser(ctx, engine.UserCreateOptions{ID: "pre", Name: "Pre", Role: "company"}); err != nil {
		t.Fatalf("seed pre-dispatch user: %v", err)
	}
	// the first dispatch pins the cursor; history is not replayed
	d.dispatchAll()
	if got := sink.all(); len(got) != 0 {
		t.Fatalf("replayed %d historic events", len(got))
	}

	if _, err := eng.CreateUser(ctx, engine.UserCreateOptions{ID: "post", Name: "Post", Role: "company"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	d.dispatchAll()

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	evt := got[0]
	if evt.Event.Type != "user.created" || evt.Event.EntityID != "post" {
		t.Fatalf("delivered %s for %s", evt.Event.Type, evt.Event.EntityID)
	}
	if evt.Header.Get("X-Exclusivewire-Event") != "user.created" {
		t.Fatalf("event header = %q", evt.Header.Get("X-Exclusivewire-Event"))
	}
	if evt.Header.Get("X-Exclusivewire-Secret") != "s3cret" {
		t.Fatalf("secret header = %q", evt.Header.Get("X-Exclusivewire-Secret"))
	}

	// redispatch without new events is a no-op
	d.dispatchAll()
	if got := sink.all(); len(got) != 1 {
		t.Fatalf("redelivered: %d deliveries", len(got))
	}
}

func TestWebhookEventFilterSkipsButAdvances(t *testing.T) {
	eng := newWebhookTestEngine(t)
	sink := &webhookSink{}
	receiver := httptest.NewServer(sink.handler())
	defer receiver.Close()

	hook := config.Webhook{URL: receiver.URL, Events: []string{"announcement.created"}}
	d := &webhookDispatcher{
		engine:   eng,
		webhooks: []config.Webhook{hook},
		client:   receiver.Client(),
		cursors:  map[int]int64{},
	}
	d.dispatchAll()

	ctx := context.Background()
	if _, err := eng.CreateUser(ctx, engine.UserCreateOptions{ID: "co-1", Name: "Acme", Role: "company"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := eng.CreateAnnouncement(ctx, engine.AnnouncementCreateOptions{
		CompanyID:          "co-1",
		Title:              "t",
		Summary:            "s",
		FullContent:        "c",
		JournalistBeatTags: []string{"Technology"},
		EmbargoAt:          "2025-07-01T09:00:00Z",
		Plan:               "Basic",
	}); err != nil {
		t.Fatalf("create announcement: %v", err)
	}
	d.dispatchAll()

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want the announcement event only", len(got))
	}
	if got[0].Event.Type != "announcement.created" {
		t.Fatalf("delivered %s", got[0].Event.Type)
	}
}
