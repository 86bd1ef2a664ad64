package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"exclusivewire/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const announcementColumns = `id,company_id,title,summary,full_content,attachments_json,industry_tags_json,journalist_beat_tags_json,embargo_at,plan,fee,status,claimed_by,created_at`

func (r Repo) InsertAnnouncementTx(ctx context.Context, tx *sql.Tx, a domain.Announcement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO announcements(`+announcementColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.CompanyID, a.Title, a.Summary, a.FullContent,
		jsonArray(a.Attachments), jsonArray(a.IndustryTags), jsonArray(a.JournalistBeatTags),
		a.EmbargoAt, string(a.Plan), a.Fee, string(a.Status), nullableStringPtr(a.ClaimedBy), a.CreatedAt)
	return err
}

func scanAnnouncement(scan func(dest ...any) error) (domain.Announcement, error) {
	var a domain.Announcement
	var attachments, industry, beats, claimedBy sql.NullString
	var plan, status string
	err := scan(&a.ID, &a.CompanyID, &a.Title, &a.Summary, &a.FullContent,
		&attachments, &industry, &beats, &a.EmbargoAt, &plan, &a.Fee, &status, &claimedBy, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Plan = domain.Plan(plan)
	a.Status = domain.AnnouncementStatus(status)
	a.Attachments = decodeStringArray(attachments)
	a.IndustryTags = decodeStringArray(industry)
	a.JournalistBeatTags = decodeStringArray(beats)
	if claimedBy.Valid {
		a.ClaimedBy = &claimedBy.String
	}
	return a, nil
}

func (r Repo) GetAnnouncement(ctx context.Context, id string) (domain.Announcement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id=?`, id)
	return scanAnnouncement(row.Scan)
}

func (r Repo) GetAnnouncementTx(ctx context.Context, tx *sql.Tx, id string) (domain.Announcement, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id=?`, id)
	return scanAnnouncement(row.Scan)
}

// ClaimAnnouncementTx performs the single conditional state transition that
// makes claiming race-free: the UPDATE only matches while the announcement is
// still awaiting a claim, so of any number of concurrent attempts exactly one
// observes a matched row. Returns false when the caller lost the race.
func (r Repo) ClaimAnnouncementTx(ctx context.Context, tx *sql.Tx, announcementID, journalistID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE announcements SET status=?, claimed_by=? WHERE id=? AND status=?`,
		string(domain.StatusClaimed), journalistID, announcementID, string(domain.StatusAwaitingClaim))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PublishAnnouncementTx flips claimed -> published with the same conditional
// discipline, so a second publish call matches zero rows.
func (r Repo) PublishAnnouncementTx(ctx context.Context, tx *sql.Tx, announcementID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE announcements SET status=? WHERE id=? AND status=?`,
		string(domain.StatusPublished), announcementID, string(domain.StatusClaimed))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type AnnouncementFilters struct {
	CompanyID       string
	Status          domain.AnnouncementStatus
	EmbargoAfter    string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListAnnouncements(ctx context.Context, f AnnouncementFilters) ([]domain.Announcement, error) {
	var clauses []string
	var args []any
	if f.CompanyID != "" {
		clauses = append(clauses, "company_id=?")
		args = append(args, f.CompanyID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.EmbargoAfter != "" {
		clauses = append(clauses, "embargo_at > ?")
		args = append(args, f.EmbargoAfter)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + announcementColumns + ` FROM announcements ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) InsertClaimTx(ctx context.Context, tx *sql.Tx, c domain.Claim) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO claims(id,announcement_id,journalist_id,status,published_url,claimed_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.AnnouncementID, c.JournalistID, string(c.Status), nullableStringPtr(c.PublishedURL), c.ClaimedAt)
	return err
}

func (r Repo) GetClaimByAnnouncement(ctx context.Context, announcementID string) (domain.Claim, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,announcement_id,journalist_id,status,published_url,claimed_at FROM claims WHERE announcement_id=?`, announcementID)
	return scanClaim(row.Scan)
}

func scanClaim(scan func(dest ...any) error) (domain.Claim, error) {
	var c domain.Claim
	var status string
	var url sql.NullString
	err := scan(&c.ID, &c.AnnouncementID, &c.JournalistID, &status, &url, &c.ClaimedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Status = domain.ClaimStatus(status)
	if url.Valid {
		c.PublishedURL = &url.String
	}
	return c, nil
}

// MarkClaimPublishedTx records the published URL on the audit claim row.
func (r Repo) MarkClaimPublishedTx(ctx context.Context, tx *sql.Tx, announcementID, publishedURL string) error {
	_, err := tx.ExecContext(ctx, `UPDATE claims SET status=?, published_url=? WHERE announcement_id=?`,
		string(domain.ClaimPublished), nullable(publishedURL), announcementID)
	return err
}

func (r Repo) InsertPaymentTx(ctx context.Context, tx *sql.Tx, p domain.Payment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO payments(announcement_id,amount,payout_split,payout_to,status,transaction_at) VALUES (?,?,?,?,?,?)`,
		p.AnnouncementID, p.Amount, p.PayoutSplit, nullableStringPtr(p.PayoutTo), string(p.Status), p.TransactionAt)
	return err
}

func (r Repo) GetPayment(ctx context.Context, announcementID string) (domain.Payment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT announcement_id,amount,payout_split,payout_to,status,transaction_at FROM payments WHERE announcement_id=?`, announcementID)
	var p domain.Payment
	var payoutTo sql.NullString
	var status string
	err := row.Scan(&p.AnnouncementID, &p.Amount, &p.PayoutSplit, &payoutTo, &status, &p.TransactionAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Status = domain.PaymentStatus(status)
	if payoutTo.Valid {
		p.PayoutTo = &payoutTo.String
	}
	return p, nil
}

// SettlePaymentTx releases the payout: recipient, split and completion are
// written together. Conditional on pending so a replay cannot settle twice.
func (r Repo) SettlePaymentTx(ctx context.Context, tx *sql.Tx, announcementID, payoutTo string, payoutSplit int, transactionAt string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET payout_to=?, payout_split=?, status=?, transaction_at=? WHERE announcement_id=? AND status=?`,
		payoutTo, payoutSplit, string(domain.PaymentCompleted), transactionAt, announcementID, string(domain.PaymentPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, entityKind, entityID)
}

// LatestEventsFrom pages backwards through the event log from a cursor ID.
func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`,
		cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var e domain.Event
	var entityID, payload sql.NullString
	err := scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &payload)
	if err != nil {
		return e, err
	}
	if entityID.Valid {
		e.EntityID = entityID.String
	}
	if payload.Valid {
		e.Payload = payload.String
	}
	return e, nil
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func jsonArray(items []string) any {
	if len(items) == 0 {
		return nil
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeStringArray(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw.String), &arr); err != nil {
		return nil
	}
	return arr
}
