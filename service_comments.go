package plume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func validateCommentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return E(ErrInvalidInput, "Text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLen {
		return E(ErrInvalidInput, "Comment must be 300 characters or less")
	}
	return nil
}

// CreateComment adds a comment to an existing post and bumps the post's
// denormalized comment counter. The insert and the counter update are
// sequential, not transactional: a failure in between leaves the counter
// behind by one, an accepted drift.
func (s *Service) CreateComment(ctx context.Context, callerID, postID, text string) (CommentView, error) {
	if err := validateCommentText(text); err != nil {
		return CommentView{}, err
	}

	if _, err := s.getPost(ctx, postID); err != nil {
		return CommentView{}, err
	}

	now := time.Now().UTC()
	comment := Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    callerID,
		Text:      SanitizeCommentText(text),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateComment(ctx, &comment); err != nil {
		return CommentView{}, fmt.Errorf("create comment: %w", err)
	}

	if err := s.store.AdjustCommentCount(ctx, postID, 1); err != nil {
		// The comment exists; the counter is now behind by one.
		slog.Error("comment counter increment failed", "post", postID, "err", err)
	}

	return s.commentView(ctx, comment)
}

// Comments lists all comments on a post, oldest first, joined with their
// authors. The result is unpaginated.
func (s *Service) Comments(ctx context.Context, postID string) ([]CommentView, error) {
	if _, err := s.getPost(ctx, postID); err != nil {
		return nil, err
	}

	comments, err := s.store.CommentsByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	authors, err := s.joinUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{Comment: c, User: authors[c.UserID]})
	}
	return views, nil
}

// EditComment replaces the comment's text and sets the edited flag.
// Owner only.
func (s *Service) EditComment(ctx context.Context, callerID, id, text string) (CommentView, error) {
	if err := validateCommentText(text); err != nil {
		return CommentView{}, err
	}

	comment, err := s.getComment(ctx, id)
	if err != nil {
		return CommentView{}, err
	}
	if comment.UserID != callerID {
		return CommentView{}, E(ErrForbidden, "Access denied. You can only edit your own comments")
	}

	comment.Text = SanitizeCommentText(text)
	comment.Edited = true
	comment.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateComment(ctx, comment); err != nil {
		return CommentView{}, fmt.Errorf("edit comment: %w", err)
	}

	return s.commentView(ctx, comment)
}

// DeleteComment removes a comment and decrements the parent post's counter,
// floored at zero. Owner only.
func (s *Service) DeleteComment(ctx context.Context, callerID, id string) error {
	comment, err := s.getComment(ctx, id)
	if err != nil {
		return err
	}
	if comment.UserID != callerID {
		return E(ErrForbidden, "Access denied. You can only delete your own comments")
	}

	if err := s.store.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	if err := s.store.AdjustCommentCount(ctx, comment.PostID, -1); err != nil {
		// Decrement is skipped entirely when the parent post is already
		// gone; only log real failures.
		if !errors.Is(err, ErrNotFound) {
			slog.Error("comment counter decrement failed", "post", comment.PostID, "err", err)
		}
	}
	return nil
}

func (s *Service) getComment(ctx context.Context, id string) (Comment, error) {
	if err := parseID(id, "comment"); err != nil {
		return Comment{}, err
	}
	comment, err := s.store.CommentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Comment{}, E(ErrNotFound, "Comment not found")
		}
		return Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return comment, nil
}

func (s *Service) commentView(ctx context.Context, comment Comment) (CommentView, error) {
	authors, err := s.joinUsers(ctx, []string{comment.UserID})
	if err != nil {
		return CommentView{}, err
	}
	return CommentView{Comment: comment, User: authors[comment.UserID]}, nil
}
