package plume_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mwrks/plume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testComment() plume.Comment {
	now := time.Now().UTC()
	return plume.Comment{
		ID:        commID,
		PostID:    postID,
		UserID:    ownerID,
		Text:      "nice one",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestService_CreateComment(t *testing.T) {
	t.Run("creates and bumps the counter", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, postID).Return(testPost(), nil)
		store.On("CreateComment", ctx, mock.MatchedBy(func(c *plume.Comment) bool {
			return c.PostID == postID && c.UserID == otherID && c.Text == "nice one"
		})).Return(nil)
		store.On("AdjustCommentCount", ctx, postID, 1).Return(nil)
		store.On("UsersByIDs", ctx, []string{otherID}).Return(testAuthors()[1:], nil)

		view, err := svc.CreateComment(ctx, otherID, postID, "nice one")
		require.NoError(t, err)
		assert.Equal(t, "nice one", view.Text)
		assert.Equal(t, "Brin", view.User.Name)

		store.AssertExpectations(t)
	})

	t.Run("counter failure does not fail the create", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, postID).Return(testPost(), nil)
		store.On("CreateComment", ctx, mock.Anything).Return(nil)
		store.On("AdjustCommentCount", ctx, postID, 1).Return(plume.ErrInternal)
		store.On("UsersByIDs", ctx, mock.Anything).Return(testAuthors()[1:], nil)

		_, err := svc.CreateComment(ctx, otherID, postID, "nice one")
		require.NoError(t, err)
	})

	t.Run("missing post", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, absentID).Return(plume.Post{}, plume.ErrNotFound)

		_, err := svc.CreateComment(ctx, otherID, absentID, "nice one")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrNotFound)

		store.AssertNotCalled(t, "CreateComment")
	})

	t.Run("blank text", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		_, err := svc.CreateComment(ctx, otherID, postID, "  ")
		require.Error(t, err)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Text is required", domainErr.Msg)

		store.AssertNotCalled(t, "PostByID")
	})

	t.Run("text over the cap", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		_, err := svc.CreateComment(ctx, otherID, postID, strings.Repeat("x", plume.MaxCommentLen+1))
		require.Error(t, err)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Comment must be 300 characters or less", domainErr.Msg)

		store.AssertNotCalled(t, "CreateComment")
	})
}

func TestService_Comments(t *testing.T) {
	t.Run("joined with authors, oldest first", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		first := testComment()
		second := testComment()
		second.ID = "cccccccc-0000-0000-0000-000000000002"
		second.UserID = otherID

		store.On("PostByID", ctx, postID).Return(testPost(), nil)
		store.On("CommentsByPost", ctx, postID).Return([]plume.Comment{first, second}, nil)
		store.On("UsersByIDs", ctx, []string{ownerID, otherID}).Return(testAuthors(), nil)

		views, err := svc.Comments(ctx, postID)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "Ada", views[0].User.Name)
		assert.Equal(t, "Brin", views[1].User.Name)

		store.AssertExpectations(t)
	})

	t.Run("missing post", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, absentID).Return(plume.Post{}, plume.ErrNotFound)

		_, err := svc.Comments(ctx, absentID)
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrNotFound)

		store.AssertNotCalled(t, "CommentsByPost")
	})
}

func TestService_EditComment(t *testing.T) {
	t.Run("owner edits and the edited flag sticks", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CommentByID", ctx, commID).Return(testComment(), nil)
		store.On("UpdateComment", ctx, mock.MatchedBy(func(c plume.Comment) bool {
			return c.ID == commID && c.Text == "edited" && c.Edited
		})).Return(nil)
		store.On("UsersByIDs", ctx, mock.Anything).Return(testAuthors()[:1], nil)

		view, err := svc.EditComment(ctx, ownerID, commID, "edited")
		require.NoError(t, err)
		assert.True(t, view.Edited)

		store.AssertExpectations(t)
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CommentByID", ctx, commID).Return(testComment(), nil)

		_, err := svc.EditComment(ctx, otherID, commID, "edited")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrForbidden)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Access denied. You can only edit your own comments", domainErr.Msg)

		store.AssertNotCalled(t, "UpdateComment")
	})

	t.Run("missing comment", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CommentByID", ctx, absentID).Return(plume.Comment{}, plume.ErrNotFound)

		_, err := svc.EditComment(ctx, ownerID, absentID, "edited")
		require.Error(t, err)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Comment not found", domainErr.Msg)
	})
}

func TestService_DeleteComment(t *testing.T) {
	t.Run("deletes and decrements the counter", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CommentByID", ctx, commID).Return(testComment(), nil)
		store.On("DeleteComment", ctx, commID).Return(nil)
		store.On("AdjustCommentCount", ctx, postID, -1).Return(nil)

		err := svc.DeleteComment(ctx, ownerID, commID)
		require.NoError(t, err)

		store.AssertExpectations(t)
	})

	t.Run("decrement skipped when parent post is gone", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CommentByID", ctx, commID).Return(testComment(), nil)
		store.On("DeleteComment", ctx, commID).Return(nil)
		store.On("AdjustCommentCount", ctx, postID, -1).Return(plume.ErrNotFound)

		err := svc.DeleteComment(ctx, ownerID, commID)
		require.NoError(t, err)
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CommentByID", ctx, commID).Return(testComment(), nil)

		err := svc.DeleteComment(ctx, otherID, commID)
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrForbidden)

		store.AssertNotCalled(t, "DeleteComment")
		store.AssertNotCalled(t, "AdjustCommentCount")
	})
}
