package repo

import (
	"context"
	"database/sql"

	"exclusivewire/internal/domain"
)

func (r Repo) InsertThreadTx(ctx context.Context, tx *sql.Tx, t domain.ChatThread) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO chat_threads(id,announcement_id,created_at) VALUES (?,?,?)`,
		t.ID, t.AnnouncementID, t.CreatedAt)
	return err
}

func (r Repo) GetThreadByAnnouncement(ctx context.Context, announcementID string) (domain.ChatThread, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,announcement_id,created_at FROM chat_threads WHERE announcement_id=?`, announcementID)
	var t domain.ChatThread
	err := row.Scan(&t.ID, &t.AnnouncementID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertMessageTx(ctx context.Context, tx *sql.Tx, m domain.ChatMessage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO chat_messages(thread_id,sender_id,body,sent_at) VALUES (?,?,?,?)`,
		m.ThreadID, m.SenderID, m.Body, m.SentAt)
	return err
}

func (r Repo) InsertMessage(ctx context.Context, m domain.ChatMessage) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO chat_messages(thread_id,sender_id,body,sent_at) VALUES (?,?,?,?)`,
		m.ThreadID, m.SenderID, m.Body, m.SentAt)
	return err
}

func (r Repo) ListMessages(ctx context.Context, threadID string) ([]domain.ChatMessage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,thread_id,sender_id,body,sent_at FROM chat_messages WHERE thread_id=? ORDER BY id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
