// Package sqlite implements plume.Store on an embedded SQLite database.
// Records are stored one table per type; the likes set is kept as a JSON
// array column, mirroring the document representation of the other
// backends.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwrks/plume"
)

// Store provides SQLite record persistence.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, avatar, bio, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Avatar, u.Bio, fmtTime(u.CreatedAt), fmtTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", plume.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (plume.User, error) {
	return s.userWhere(ctx, "id = ?", id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (plume.User, error) {
	return s.userWhere(ctx, "email = ?", email)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (plume.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, avatar, bio, created_at, updated_at
		FROM users WHERE `+cond, arg)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, avatar, bio, created_at, updated_at
		FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []plume.User
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("users by ids: %w", scanErr)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, u plume.User) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, avatar = ?, bio = ?, updated_at = ? WHERE id = ?`,
		u.Name, u.Avatar, u.Bio, fmtTime(u.UpdatedAt), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return checkAffected(result, "update user")
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *plume.Post) error {
	likes, err := marshalLikes(p.Likes)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, body, image, likes, comments_count, edited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Text, p.Image, likes, p.CommentsCount, p.Edited, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s *Store) PostByID(ctx context.Context, id string) (plume.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, body, image, likes, comments_count, edited, created_at, updated_at
		FROM posts WHERE id = ?`, id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		where = "WHERE user_id = ?"
		args = append(args, q.UserID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list posts: count: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, body, image, likes, comments_count, edited, created_at, updated_at
		FROM posts `+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, q.Limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	likes, err := marshalLikes(p.Likes)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE posts SET body = ?, image = ?, likes = ?, comments_count = ?, edited = ?, updated_at = ?
		WHERE id = ?`,
		p.Text, p.Image, likes, p.CommentsCount, p.Edited, fmtTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return checkAffected(result, "update post")
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return checkAffected(result, "delete post")
}

func (s *Store) AddLike(ctx context.Context, postID, userID string) error {
	return s.mutateLikes(ctx, postID, func(likes []string) []string {
		for _, id := range likes {
			if id == userID {
				return likes
			}
		}
		return append(likes, userID)
	})
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) error {
	return s.mutateLikes(ctx, postID, func(likes []string) []string {
		out := likes[:0]
		for _, id := range likes {
			if id != userID {
				out = append(out, id)
			}
		}
		return out
	})
}

// mutateLikes rewrites the likes set inside a transaction so concurrent
// toggles serialize on the row.
func (s *Store) mutateLikes(ctx context.Context, postID string, mutate func([]string) []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mutate likes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT likes FROM posts WHERE id = ?`, postID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("mutate likes: %w", plume.ErrNotFound)
		}
		return fmt.Errorf("mutate likes: %w", err)
	}

	var likes []string
	if err := json.Unmarshal([]byte(raw), &likes); err != nil {
		return fmt.Errorf("mutate likes: decode: %w", err)
	}

	updated, err := marshalLikes(mutate(likes))
	if err != nil {
		return fmt.Errorf("mutate likes: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET likes = ?, updated_at = ? WHERE id = ?`,
		updated, fmtTime(time.Now()), postID,
	); err != nil {
		return fmt.Errorf("mutate likes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mutate likes: %w", err)
	}
	return nil
}

func (s *Store) AdjustCommentCount(ctx context.Context, postID string, delta int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE posts SET comments_count = MAX(0, comments_count + ?) WHERE id = ?`,
		delta, postID,
	)
	if err != nil {
		return fmt.Errorf("adjust comment count: %w", err)
	}
	return checkAffected(result, "adjust comment count")
}

func (s *Store) CountPostsByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func (s *Store) PostsWithImagePrefix(ctx context.Context, prefix string) ([]plume.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, body, image, likes, comments_count, edited, created_at, updated_at
		FROM posts WHERE image LIKE ? || '%' ESCAPE '\'`,
		escapeLike(prefix))
	if err != nil {
		return nil, fmt.Errorf("posts with image prefix: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, user_id, body, edited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.UserID, c.Text, c.Edited, fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *Store) CommentByID(ctx context.Context, id string) (plume.Comment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, post_id, user_id, body, edited, created_at, updated_at
		FROM comments WHERE id = ?`, id)

	c, err := scanComment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plume.Comment{}, plume.ErrNotFound
		}
		return plume.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (s *Store) CommentsByPost(ctx context.Context, postID string) ([]plume.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, user_id, body, edited, created_at, updated_at
		FROM comments WHERE post_id = ? ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("comments by post: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []plume.Comment
	for rows.Next() {
		c, scanErr := scanComment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("comments by post: %w", scanErr)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("comments by post: %w", err)
	}
	return comments, nil
}

func (s *Store) UpdateComment(ctx context.Context, c plume.Comment) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE comments SET body = ?, edited = ?, updated_at = ? WHERE id = ?`,
		c.Text, c.Edited, fmtTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return checkAffected(result, "update comment")
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return checkAffected(result, "delete comment")
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, postID)
	if err != nil {
		return 0, fmt.Errorf("delete comments by post: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete comments by post: %w", err)
	}
	return removed, nil
}

// Scanning

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (plume.User, error) {
	var u plume.User
	var createdAt, updatedAt string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.Bio, &createdAt, &updatedAt); err != nil {
		return plume.User{}, err
	}
	return u, parseTimes(&u.CreatedAt, &u.UpdatedAt, createdAt, updatedAt)
}

func scanPost(row scanner) (plume.Post, error) {
	var p plume.Post
	var likesRaw string
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.UserID, &p.Text, &p.Image, &likesRaw, &p.CommentsCount, &p.Edited, &createdAt, &updatedAt); err != nil {
		return plume.Post{}, err
	}
	if err := json.Unmarshal([]byte(likesRaw), &p.Likes); err != nil {
		return plume.Post{}, fmt.Errorf("decode likes: %w", err)
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return p, parseTimes(&p.CreatedAt, &p.UpdatedAt, createdAt, updatedAt)
}

func scanComment(row scanner) (plume.Comment, error) {
	var c plume.Comment
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.Text, &c.Edited, &createdAt, &updatedAt); err != nil {
		return plume.Comment{}, err
	}
	return c, parseTimes(&c.CreatedAt, &c.UpdatedAt, createdAt, updatedAt)
}

func parseTimes(created, updated *time.Time, createdRaw, updatedRaw string) error {
	var err error
	if *created, err = time.Parse(timeLayout, createdRaw); err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	if *updated, err = time.Parse(timeLayout, updatedRaw); err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}
	return nil
}

func marshalLikes(likes []string) (string, error) {
	if likes == nil {
		likes = []string{}
	}
	raw, err := json.Marshal(likes)
	if err != nil {
		return "", fmt.Errorf("encode likes: %w", err)
	}
	return string(raw), nil
}

func checkAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, plume.ErrNotFound)
	}
	return nil
}
