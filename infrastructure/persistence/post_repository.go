package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const postColumns = `id, user_id, content, topic, tone, keywords, created_at, is_scheduled, scheduled_for, timezone,
	is_published, published_at, linkedin_post_id, status, error, likes, comments, shares`

// PostRepository implements repository.IPost on PostgreSQL (native sql.DB).
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.IPost { return &PostRepository{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost reads one row selected with postColumns. keywords receives the
// vendor-specific keywords column and is decoded by the caller.
func scanPost(s rowScanner, keywords any) (*model.Post, error) {
	p := &model.Post{}
	var (
		tone                                   string
		scheduledFor, publishedAt              sql.NullTime
		timezone, remoteID, status, lastErrMsg sql.NullString
	)
	err := s.Scan(&p.ID, &p.UserID, &p.Content, &p.Topic, &tone, keywords, &p.CreatedAt, &p.IsScheduled,
		&scheduledFor, &timezone, &p.IsPublished, &publishedAt, &remoteID, &status, &lastErrMsg,
		&p.Metrics.Likes, &p.Metrics.Comments, &p.Metrics.Shares)
	if err != nil {
		return nil, err
	}
	p.Tone = model.Tone(tone)
	p.CreatedAt = p.CreatedAt.UTC()
	if scheduledFor.Valid {
		t := scheduledFor.Time.UTC()
		p.ScheduledFor = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		p.PublishedAt = &t
	}
	p.Timezone = timezone.String
	p.LinkedInPostID = nullableString(remoteID)
	p.Status = nullableString(status)
	p.Error = nullableString(lastErrMsg)
	return p, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// preparePost assigns the identity and defaults shared by every store.
func preparePost(p *model.Post) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Tone == "" {
		p.Tone = model.ToneProfessional
	}
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
}

func (r *PostRepository) FindDue(ctx context.Context, now time.Time) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts
		WHERE is_scheduled = TRUE AND is_published = FALSE AND scheduled_for <= $1
		ORDER BY scheduled_for ASC`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *PostRepository) collect(rows *sql.Rows) ([]*model.Post, error) {
	var posts []*model.Post
	for rows.Next() {
		var kw pq.StringArray
		p, err := scanPost(rows, &kw)
		if err != nil {
			return nil, err
		}
		p.Keywords = []string(kw)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	preparePost(p)
	_, err := r.db.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		p.ID, p.UserID, p.Content, p.Topic, string(p.Tone), pq.Array(p.Keywords), p.CreatedAt, p.IsScheduled,
		nullTime(p.ScheduledFor), sql.NullString{String: p.Timezone, Valid: p.Timezone != ""},
		p.IsPublished, nullTime(p.PublishedAt), nullString(p.LinkedInPostID), nullString(p.Status), nullString(p.Error),
		p.Metrics.Likes, p.Metrics.Comments, p.Metrics.Shares)
	return err
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	var kw pq.StringArray
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

func (r *PostRepository) ListByUser(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, int64, error) {
	f := filter.Normalize()
	where := `WHERE user_id = $1`
	order := `ORDER BY created_at DESC`
	args := []any{userID}
	if f.ScheduledOnly {
		where += ` AND is_scheduled = TRUE AND scheduled_for > $2`
		order = `ORDER BY scheduled_for ASC`
		args = append(args, f.Now.UTC())
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := `SELECT ` + postColumns + ` FROM posts ` + where + ` ` + order +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, f.Limit, f.Skip())...)
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

func (r *PostRepository) MarkPublished(ctx context.Context, id string, outcome model.PublishOutcome) (bool, error) {
	var status sql.NullString
	if outcome.Status != "" {
		status = sql.NullString{String: outcome.Status, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET is_published = TRUE, published_at = $2, linkedin_post_id = $3, status = $4, error = NULL
		WHERE id = $1 AND is_published = FALSE`, id, outcome.PublishedAt.UTC(), outcome.LinkedInPostID, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostRepository) RecordFailure(ctx context.Context, id string, message string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE posts SET error = $2 WHERE id = $1 AND is_published = FALSE`, id, message)
	return err
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}
