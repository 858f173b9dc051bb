package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
)

type PostRepositoryMSSQL struct{ db *sql.DB }

func NewPostRepositoryMSSQL(db *sql.DB) repository.IPost { return &PostRepositoryMSSQL{db: db} }

// jsonKeywords stores keywords as a JSON array in an NVARCHAR(MAX) column.
type jsonKeywords []string

func (k *jsonKeywords) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*k = jsonKeywords{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("keywords: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*k = jsonKeywords{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(k))
}

func (k jsonKeywords) encode() string {
	if len(k) == 0 {
		return "[]"
	}
	b, _ := json.Marshal([]string(k))
	return string(b)
}

func (r *PostRepositoryMSSQL) collect(rows *sql.Rows) ([]*model.Post, error) {
	var posts []*model.Post
	for rows.Next() {
		var kw jsonKeywords
		p, err := scanPost(rows, &kw)
		if err != nil {
			return nil, err
		}
		p.Keywords = []string(kw)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *PostRepositoryMSSQL) FindDue(ctx context.Context, now time.Time) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM dbo.[posts]
		WHERE is_scheduled = 1 AND is_published = 0 AND scheduled_for <= @p1
		ORDER BY scheduled_for ASC`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *PostRepositoryMSSQL) Create(ctx context.Context, p *model.Post) error {
	preparePost(p)
	_, err := r.db.ExecContext(ctx, `INSERT INTO dbo.[posts] (`+postColumns+`)
		VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13,@p14,@p15,@p16,@p17,@p18)`,
		p.ID, p.UserID, p.Content, p.Topic, string(p.Tone), jsonKeywords(p.Keywords).encode(), p.CreatedAt, p.IsScheduled,
		nullTime(p.ScheduledFor), sql.NullString{String: p.Timezone, Valid: p.Timezone != ""},
		p.IsPublished, nullTime(p.PublishedAt), nullString(p.LinkedInPostID), nullString(p.Status), nullString(p.Error),
		p.Metrics.Likes, p.Metrics.Comments, p.Metrics.Shares)
	return err
}

func (r *PostRepositoryMSSQL) GetByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM dbo.[posts] WHERE id = @p1`, id)
	var kw jsonKeywords
	p, err := scanPost(row, &kw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Keywords = []string(kw)
	return p, nil
}

func (r *PostRepositoryMSSQL) ListByUser(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, int64, error) {
	f := filter.Normalize()
	where := `WHERE user_id = @p1`
	order := `ORDER BY created_at DESC`
	args := []any{userID}
	if f.ScheduledOnly {
		where += ` AND is_scheduled = 1 AND scheduled_for > @p2`
		order = `ORDER BY scheduled_for ASC`
		args = append(args, f.Now.UTC())
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT_BIG(*) FROM dbo.[posts] `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM dbo.[posts] %s %s OFFSET @p%d ROWS FETCH NEXT @p%d ROWS ONLY`, postColumns, where, order, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, f.Skip(), f.Limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	posts, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepositoryMSSQL) MarkPublished(ctx context.Context, id string, outcome model.PublishOutcome) (bool, error) {
	var status sql.NullString
	if outcome.Status != "" {
		status = sql.NullString{String: outcome.Status, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.[posts] SET is_published = 1, published_at = @p2, linkedin_post_id = @p3, status = @p4, error = NULL
		WHERE id = @p1 AND is_published = 0`, id, outcome.PublishedAt.UTC(), outcome.LinkedInPostID, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostRepositoryMSSQL) RecordFailure(ctx context.Context, id string, message string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE dbo.[posts] SET error = @p2 WHERE id = @p1 AND is_published = 0`, id, message)
	return err
}

func (r *PostRepositoryMSSQL) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dbo.[posts] WHERE id = @p1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}
