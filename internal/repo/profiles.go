package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"exclusivewire/internal/domain"
)

const profileColumns = `user_id,bio,years_experience,specializations_json,beats_json,response_time,exclusive_interest,verified,trust_score,verified_at,searchable,last_active_at,completeness,created_at,updated_at`

const upsertProfileSQL = `INSERT INTO journalist_profiles(` + profileColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(user_id) DO UPDATE SET
		bio=excluded.bio,
		years_experience=excluded.years_experience,
		specializations_json=excluded.specializations_json,
		beats_json=excluded.beats_json,
		response_time=excluded.response_time,
		exclusive_interest=excluded.exclusive_interest,
		searchable=excluded.searchable,
		last_active_at=excluded.last_active_at,
		completeness=excluded.completeness,
		updated_at=excluded.updated_at`

func upsertProfileArgs(p domain.JournalistProfile) ([]any, error) {
	beats, err := json.Marshal(p.Beats)
	if err != nil {
		return nil, err
	}
	return []any{
		p.UserID, nullable(p.Bio), p.YearsExperience, jsonArray(p.Specializations), string(beats),
		p.ResponseTime, p.ExclusiveInterest, boolInt(p.Verified), p.TrustScore, nullableStringPtr(p.VerifiedAt),
		boolInt(p.Searchable), p.LastActiveAt, p.Completeness, p.CreatedAt, p.UpdatedAt,
	}, nil
}

// UpsertProfile writes the full profile row; SQLite's ON CONFLICT clause keeps
// the original created_at on update.
func (r Repo) UpsertProfile(ctx context.Context, p domain.JournalistProfile) error {
	args, err := upsertProfileArgs(p)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, upsertProfileSQL, args...)
	return err
}

func (r Repo) UpsertProfileTx(ctx context.Context, tx *sql.Tx, p domain.JournalistProfile) error {
	args, err := upsertProfileArgs(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, upsertProfileSQL, args...)
	return err
}

func (r Repo) GetProfile(ctx context.Context, userID string) (domain.JournalistProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM journalist_profiles WHERE user_id=?`, userID)
	return scanProfile(row.Scan)
}

// ListSearchableProfiles returns all profiles visible to the matching engine.
// Beat intersection happens in Go; the beats live in a JSON column.
func (r Repo) ListSearchableProfiles(ctx context.Context) ([]domain.JournalistProfile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+profileColumns+` FROM journalist_profiles WHERE searchable=1 ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.JournalistProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// VerifyProfileTx marks the journalist verified and raises trust, capped at
// 100. Runs in the caller's transaction so the verification event commits
// with the row change.
func (r Repo) VerifyProfileTx(ctx context.Context, tx *sql.Tx, userID string, trustBonus int, verifiedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE journalist_profiles SET verified=1, trust_score=MIN(100, trust_score+?), verified_at=?, updated_at=? WHERE user_id=?`,
		trustBonus, verifiedAt, verifiedAt, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TouchProfileActivity updates last_active_at, used by claim and chat flows.
func (r Repo) TouchProfileActivityTx(ctx context.Context, tx *sql.Tx, userID, ts string) error {
	_, err := tx.ExecContext(ctx, `UPDATE journalist_profiles SET last_active_at=?, updated_at=? WHERE user_id=?`, ts, ts, userID)
	return err
}

func scanProfile(scan func(dest ...any) error) (domain.JournalistProfile, error) {
	var p domain.JournalistProfile
	var bio, specializations, beats, verifiedAt sql.NullString
	var years sql.NullInt64
	var verified, searchable int
	err := scan(&p.UserID, &bio, &years, &specializations, &beats,
		&p.ResponseTime, &p.ExclusiveInterest, &verified, &p.TrustScore, &verifiedAt,
		&searchable, &p.LastActiveAt, &p.Completeness, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Bio = bio.String
	p.YearsExperience = int(years.Int64)
	p.Specializations = decodeStringArray(specializations)
	if beats.Valid && beats.String != "" {
		if err := json.Unmarshal([]byte(beats.String), &p.Beats); err != nil {
			return p, err
		}
	}
	p.Verified = verified != 0
	p.Searchable = searchable != 0
	if verifiedAt.Valid {
		p.VerifiedAt = &verifiedAt.String
	}
	return p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
