package exclusivewiresdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal ExclusiveWire HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Announcement represents the API announcement model (partial).
type Announcement struct {
	ID                 string   `json:"id"`
	CompanyID          string   `json:"company_id"`
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	JournalistBeatTags []string `json:"journalist_beat_tags"`
	EmbargoAt          string   `json:"embargo_at"`
	Plan               string   `json:"plan"`
	Fee                int64    `json:"fee"`
	Status             string   `json:"status"`
	ClaimedBy          *string  `json:"claimed_by,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

// ClaimResult is the payload returned by a successful claim.
type ClaimResult struct {
	Announcement Announcement `json:"announcement"`
	ChatID       string       `json:"chat_id"`
}

// Match is one ranked journalist candidate.
type Match struct {
	JournalistID  string   `json:"journalist_id"`
	Score         int      `json:"score"`
	MatchingBeats []string `json:"matching_beats"`
	Reasons       []string `json:"reasons"`
}

// ChatMessage is one thread entry.
type ChatMessage struct {
	ID       int64  `json:"id"`
	ThreadID string `json:"thread_id"`
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
	SentAt   string `json:"sent_at"`
}

// ChatThread is a claim conversation.
type ChatThread struct {
	ID             string        `json:"id"`
	AnnouncementID string        `json:"announcement_id"`
	CreatedAt      string        `json:"created_at"`
	Messages       []ChatMessage `json:"messages"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateAnnouncement posts a new announcement.
func (c *Client) CreateAnnouncement(ctx context.Context, title, summary, fullContent string, beatTags []string, embargoAt, plan string, fee int64) (Announcement, error) {
	body := map[string]any{
		"title":                title,
		"summary":              summary,
		"full_content":         fullContent,
		"journalist_beat_tags": beatTags,
		"embargo_at":           embargoAt,
		"plan":                 plan,
		"fee":                  fee,
	}
	var resp Announcement
	err := c.do(ctx, http.MethodPost, "announcements", body, &resp)
	return resp, err
}

// ListAnnouncements returns announcements visible to the caller.
func (c *Client) ListAnnouncements(ctx context.Context, limit int) ([]Announcement, error) {
	endpoint := "announcements"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Announcement
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetAnnouncement fetches one announcement.
func (c *Client) GetAnnouncement(ctx context.Context, id string) (Announcement, error) {
	var resp Announcement
	err := c.do(ctx, http.MethodGet, "announcements/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Claim takes exclusive coverage rights for the authenticated journalist.
func (c *Client) Claim(ctx context.Context, announcementID string) (ClaimResult, error) {
	var resp ClaimResult
	endpoint := fmt.Sprintf("announcements/%s/claim", url.PathEscape(announcementID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// Publish marks a claimed announcement as published.
func (c *Client) Publish(ctx context.Context, announcementID, publishedURL string) (Announcement, error) {
	var resp Announcement
	endpoint := fmt.Sprintf("announcements/%s/publish", url.PathEscape(announcementID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"published_url": publishedURL}, &resp)
	return resp, err
}

// Matches ranks journalists for an announcement.
func (c *Client) Matches(ctx context.Context, announcementID string) ([]Match, error) {
	var resp []Match
	endpoint := fmt.Sprintf("announcements/%s/matches", url.PathEscape(announcementID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Chat fetches the claim chat thread.
func (c *Client) Chat(ctx context.Context, announcementID string) (ChatThread, error) {
	var resp ChatThread
	endpoint := fmt.Sprintf("announcements/%s/chat", url.PathEscape(announcementID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SendChatMessage posts to the claim chat thread.
func (c *Client) SendChatMessage(ctx context.Context, announcementID, message string) (ChatMessage, error) {
	var resp ChatMessage
	endpoint := fmt.Sprintf("announcements/%s/chat", url.PathEscape(announcementID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"message": message}, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
