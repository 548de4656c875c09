// Package postgres implements plume.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwrks/plume"
)

// Store provides PostgreSQL record persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connected, migrated pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// escapeLike escapes LIKE wildcards so a prefix is matched literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *plume.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, avatar, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Avatar, u.Bio, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", plume.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (plume.User, error) {
	return s.userWhere(ctx, "id = $1", id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (plume.User, error) {
	return s.userWhere(ctx, "email = $1", email)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (plume.User, error) {
	var u plume.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, avatar, bio, created_at, updated_at
		FROM users WHERE `+cond, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.Bio, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plume.User{}, plume.ErrNotFound
		}
		return plume.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]plume.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, password_hash, avatar, bio, created_at, updated_at
		FROM users WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	defer rows.Close()

	var users []plume.User
	for rows.Next() {
		var u plume.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.Bio, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("users by ids: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, u plume.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $1, avatar = $2, bio = $3, updated_at = $4 WHERE id = $5
	`, u.Name, u.Avatar, u.Bio, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return checkAffected(tag, "update user")
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *plume.Post) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (id, user_id, body, image, likes, comments_count, edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.UserID, p.Text, p.Image, likesValue(p.Likes), p.CommentsCount, p.Edited, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s *Store) PostByID(ctx context.Context, id string) (plume.Post, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, body, image, likes, comments_count, edited, created_at, updated_at
		FROM posts WHERE id = $1
	`, id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plume.Post{}, plume.ErrNotFound
		}
		return plume.Post{}, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

func (s *Store) Posts(ctx context.Context, q plume.PostQuery) ([]plume.Post, int64, error) {
	where := ""
	args := []any{}
	if q.UserID != "" {
		where = "WHERE user_id = $1"
		args = append(args, q.UserID)
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list posts: count: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	limitArgs := append(args, q.Limit, offset)
	query := fmt.Sprintf(`
		SELECT id, user_id, body, image, likes, comments_count, edited, created_at, updated_at
		FROM posts %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]plume.Post, 0, q.Limit)
	for rows.Next() {
		p, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("list posts: %w", scanErr)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, p plume.Post) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET body = $1, image = $2, likes = $3, comments_count = $4, edited = $5, updated_at = $6
		WHERE id = $7
	`, p.Text, p.Image, likesValue(p.Likes), p.CommentsCount, p.Edited, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return checkAffected(tag, "update post")
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return checkAffected(tag, "delete post")
}

func (s *Store) AddLike(ctx context.Context, postID, userID string) error {
	// JSONB set union keeps the operation atomic and idempotent.
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET likes = CASE
			WHEN likes @> to_jsonb(ARRAY[$2::text]) THEN likes
			ELSE likes || to_jsonb(ARRAY[$2::text])
		END,
		updated_at = NOW()
		WHERE id = $1
	`, postID, userID)
	if err != nil {
		return fmt.Errorf("add like: %w", err)
	}
	return checkAffected(tag, "add like")
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET likes = COALESCE((
			SELECT jsonb_agg(elem) FROM jsonb_array_elements(likes) AS elem
			WHERE elem <> to_jsonb($2::text)
		), '[]'::jsonb),
		updated_at = NOW()
		WHERE id = $1
	`, postID, userID)
	if err != nil {
		return fmt.Errorf("remove like: %w", err)
	}
	return checkAffected(tag, "remove like")
}

func (s *Store) AdjustCommentCount(ctx context.Context, postID string, delta int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET comments_count = GREATEST(0, comments_count + $1) WHERE id = $2
	`, delta, postID)
	if err != nil {
		return fmt.Errorf("adjust comment count: %w", err)
	}
	return checkAffected(tag, "adjust comment count")
}

func (s *Store) CountPostsByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func (s *Store) PostsWithImagePrefix(ctx context.Context, prefix string) ([]plume.Post, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, body, image, likes, comments_count, edited, created_at, updated_at
		FROM posts WHERE image LIKE $1 || '%'
	`, escapeLike(prefix))
	if err != nil {
		return nil, fmt.Errorf("posts with image prefix: %w", err)
	}
	defer rows.Close()

	var posts []plume.Post
	for rows.Next() {
		p, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("posts with image prefix: %w", scanErr)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("posts with image prefix: %w", err)
	}
	return posts, nil
}

// Comments

func (s *Store) CreateComment(ctx context.Context, c *plume.Comment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO comments (id, post_id, user_id, body, edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.PostID, c.UserID, c.Text, c.Edited, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *Store) CommentByID(ctx context.Context, id string) (plume.Comment, error) {
	var c plume.Comment
	err := s.pool.QueryRow(ctx, `
		SELECT id, post_id, user_id, body, edited, created_at, updated_at
		FROM comments WHERE id = $1
	`, id).Scan(&c.ID, &c.PostID, &c.UserID, &c.Text, &c.Edited, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plume.Comment{}, plume.ErrNotFound
		}
		return plume.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (s *Store) CommentsByPost(ctx context.Context, postID string) ([]plume.Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, post_id, user_id, body, edited, created_at, updated_at
		FROM comments WHERE post_id = $1 ORDER BY created_at ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("comments by post: %w", err)
	}
	defer rows.Close()

	var comments []plume.Comment
	for rows.Next() {
		var c plume.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Text, &c.Edited, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("comments by post: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("comments by post: %w", err)
	}
	return comments, nil
}

func (s *Store) UpdateComment(ctx context.Context, c plume.Comment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE comments SET body = $1, edited = $2, updated_at = $3 WHERE id = $4
	`, c.Text, c.Edited, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return checkAffected(tag, "update comment")
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return checkAffected(tag, "delete comment")
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, postID)
	if err != nil {
		return 0, fmt.Errorf("delete comments by post: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Scanning

func scanPost(row pgx.Row) (plume.Post, error) {
	var p plume.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Text, &p.Image, &p.Likes, &p.CommentsCount, &p.Edited, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return plume.Post{}, err
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return p, nil
}

func likesValue(likes []string) []string {
	if likes == nil {
		return []string{}
	}
	return likes
}

func checkAffected(tag pgconn.CommandTag, op string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, plume.ErrNotFound)
	}
	return nil
}
