package repo

import (
	"context"
	"database/sql"

	"exclusivewire/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,role,beat_tags_json,company_name,publication,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, string(u.Role), jsonArray(u.BeatTags), nullable(u.CompanyName), nullable(u.Publication), u.CreatedAt)
	return err
}

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,name,role,beat_tags_json,company_name,publication,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, string(u.Role), jsonArray(u.BeatTags), nullable(u.CompanyName), nullable(u.Publication), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,role,beat_tags_json,company_name,publication,created_at FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT id,name,role,beat_tags_json,company_name,publication,created_at FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var role string
	var beats, company, publication sql.NullString
	err := scan(&u.ID, &u.Name, &role, &beats, &company, &publication, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Role = domain.Role(role)
	u.BeatTags = decodeStringArray(beats)
	u.CompanyName = company.String
	u.Publication = publication.String
	return u, nil
}
