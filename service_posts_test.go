package plume_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mwrks/plume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	ownerID  = "aaaaaaaa-0000-0000-0000-000000000001"
	otherID  = "aaaaaaaa-0000-0000-0000-000000000002"
	postID   = "bbbbbbbb-0000-0000-0000-000000000001"
	commID   = "cccccccc-0000-0000-0000-000000000001"
	absentID = "dddddddd-0000-0000-0000-000000000099"
)

func testPost() plume.Post {
	now := time.Now().UTC()
	return plume.Post{
		ID:        postID,
		UserID:    ownerID,
		Text:      "hello feed",
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testAuthors() []plume.User {
	return []plume.User{
		{ID: ownerID, Name: "Ada", Avatar: "https://example.com/ada.png"},
		{ID: otherID, Name: "Brin"},
	}
}

func TestService_CreatePost(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CreatePost", ctx, mock.MatchedBy(func(p *plume.Post) bool {
			return p.UserID == ownerID &&
				p.Text == "hello feed" &&
				p.Likes != nil && len(p.Likes) == 0 &&
				p.CommentsCount == 0 &&
				!p.Edited
		})).Return(nil)
		store.On("UsersByIDs", ctx, []string{ownerID}).Return(testAuthors()[:1], nil)

		view, err := svc.CreatePost(ctx, ownerID, "hello feed", "")
		require.NoError(t, err)
		assert.Equal(t, ownerID, view.UserID)
		assert.Equal(t, "Ada", view.User.Name)
		assert.NotEmpty(t, view.ID)

		store.AssertExpectations(t)
	})

	t.Run("sanitizes text", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("CreatePost", ctx, mock.MatchedBy(func(p *plume.Post) bool {
			return p.Text == "&lt;b&gt;hi&lt;&#x2F;b&gt;"
		})).Return(nil)
		store.On("UsersByIDs", ctx, mock.Anything).Return(testAuthors()[:1], nil)

		_, err := svc.CreatePost(ctx, ownerID, "<b>hi</b>", "")
		require.NoError(t, err)

		store.AssertExpectations(t)
	})

	t.Run("blank text", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		_, err := svc.CreatePost(ctx, ownerID, "   \n ", "")
		require.Error(t, err)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Text is required", domainErr.Msg)

		store.AssertNotCalled(t, "CreatePost")
	})

	t.Run("text over the cap", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		_, err := svc.CreatePost(ctx, ownerID, strings.Repeat("x", plume.MaxPostLen+1), "")
		require.Error(t, err)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Text must be 500 characters or less", domainErr.Msg)

		store.AssertNotCalled(t, "CreatePost")
	})
}

func TestService_Posts(t *testing.T) {
	t.Run("pagination math", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		posts := []plume.Post{testPost()}
		store.On("Posts", ctx, plume.PostQuery{Page: 2, Limit: 10}).Return(posts, int64(15), nil)
		store.On("UsersByIDs", ctx, []string{ownerID}).Return(testAuthors()[:1], nil)

		page, err := svc.Posts(ctx, plume.PostQuery{Page: 2, Limit: 10})
		require.NoError(t, err)

		assert.Equal(t, 2, page.Pagination.Page)
		assert.Equal(t, 10, page.Pagination.Limit)
		assert.Equal(t, int64(15), page.Pagination.Total)
		assert.Equal(t, int64(2), page.Pagination.Pages)
		require.Len(t, page.Posts, 1)
		assert.Equal(t, "Ada", page.Posts[0].User.Name)

		store.AssertExpectations(t)
	})

	t.Run("normalizes page and limit", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("Posts", ctx, plume.PostQuery{Page: 1, Limit: 10}).Return([]plume.Post{}, int64(0), nil)
		store.On("UsersByIDs", ctx, []string{}).Return([]plume.User{}, nil)

		page, err := svc.Posts(ctx, plume.PostQuery{Page: 0, Limit: -3})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Pagination.Page)
		assert.Equal(t, 10, page.Pagination.Limit)
		assert.Empty(t, page.Posts)

		store.AssertExpectations(t)
	})

	t.Run("clamps page to maximum", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		// An absurd page number never reaches the store as-is; the skip it
		// would produce stays bounded.
		store.On("Posts", ctx, plume.PostQuery{Page: plume.MaxPage, Limit: 10}).
			Return([]plume.Post{}, int64(15), nil)
		store.On("UsersByIDs", ctx, mock.Anything).Return([]plume.User{}, nil)

		page, err := svc.Posts(ctx, plume.PostQuery{Page: int(^uint(0) >> 1), Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, plume.MaxPage, page.Pagination.Page)
		assert.Empty(t, page.Posts)

		store.AssertExpectations(t)
	})

	t.Run("clamps limit to maximum", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("Posts", ctx, plume.PostQuery{Page: 1, Limit: plume.MaxPageLimit}).
			Return([]plume.Post{}, int64(0), nil)
		store.On("UsersByIDs", ctx, mock.Anything).Return([]plume.User{}, nil)

		_, err := svc.Posts(ctx, plume.PostQuery{Page: 1, Limit: 10_000})
		require.NoError(t, err)

		store.AssertExpectations(t)
	})

	t.Run("missing author resolves to zero value", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("Posts", ctx, mock.Anything).Return([]plume.Post{testPost()}, int64(1), nil)
		store.On("UsersByIDs", ctx, []string{ownerID}).Return([]plume.User{}, nil)

		page, err := svc.Posts(ctx, plume.PostQuery{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Posts, 1)
		assert.Empty(t, page.Posts[0].User.ID)
	})
}

func TestService_Post(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, absentID).Return(plume.Post{}, plume.ErrNotFound)

		_, err := svc.Post(ctx, absentID)
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrNotFound)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Post not found", domainErr.Msg)
	})

	t.Run("malformed id", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		_, err := svc.Post(ctx, "not-a-uuid")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrInvalidID)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Invalid post ID", domainErr.Msg)

		store.AssertNotCalled(t, "PostByID")
	})
}

func TestService_EditPost(t *testing.T) {
	t.Run("owner edits and the edited flag sticks", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, postID).Return(testPost(), nil)
		store.On("UpdatePost", ctx, mock.MatchedBy(func(p plume.Post) bool {
			return p.ID == postID && p.Text == "updated" && p.Edited
		})).Return(nil)
		store.On("UsersByIDs", ctx, mock.Anything).Return(testAuthors()[:1], nil)

		view, err := svc.EditPost(ctx, ownerID, postID, "updated")
		require.NoError(t, err)
		assert.True(t, view.Edited)
		assert.Equal(t, "updated", view.Text)

		store.AssertExpectations(t)
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, postID).Return(testPost(), nil)

		_, err := svc.EditPost(ctx, otherID, postID, "updated")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrForbidden)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Access denied. You can only edit your own posts", domainErr.Msg)

		store.AssertNotCalled(t, "UpdatePost")
	})
}

func TestService_DeletePost(t *testing.T) {
	t.Run("cascades comments before the post", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, postID).Return(testPost(), nil)
		store.On("DeleteCommentsByPost", ctx, postID).Return(int64(3), nil)
		store.On("DeletePost", ctx, postID).Return(nil)

		err := svc.DeletePost(ctx, ownerID, postID)
		require.NoError(t, err)

		store.AssertExpectations(t)
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, postID).Return(testPost(), nil)

		err := svc.DeletePost(ctx, otherID, postID)
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrForbidden)

		store.AssertNotCalled(t, "DeleteCommentsByPost")
		store.AssertNotCalled(t, "DeletePost")
	})

	t.Run("cascade failure leaves the post", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, postID).Return(testPost(), nil)
		store.On("DeleteCommentsByPost", ctx, postID).Return(int64(0), errors.New("connection reset"))

		err := svc.DeletePost(ctx, ownerID, postID)
		require.Error(t, err)

		store.AssertNotCalled(t, "DeletePost")
	})
}

func TestService_ToggleLike(t *testing.T) {
	t.Run("first toggle likes", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		post := testPost()
		store.On("PostByID", ctx, postID).Return(post, nil)
		store.On("AddLike", ctx, postID, otherID).Return(nil)

		result, err := svc.ToggleLike(ctx, otherID, postID)
		require.NoError(t, err)
		assert.True(t, result.Liked)
		assert.Equal(t, 1, result.LikesCount)

		store.AssertExpectations(t)
		store.AssertNotCalled(t, "RemoveLike")
	})

	t.Run("second toggle unlikes back to the original count", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		post := testPost()
		post.Likes = []string{otherID, ownerID}
		store.On("PostByID", ctx, postID).Return(post, nil)
		store.On("RemoveLike", ctx, postID, otherID).Return(nil)

		result, err := svc.ToggleLike(ctx, otherID, postID)
		require.NoError(t, err)
		assert.False(t, result.Liked)
		assert.Equal(t, 1, result.LikesCount)

		store.AssertExpectations(t)
		store.AssertNotCalled(t, "AddLike")
	})

	t.Run("missing post", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostByID", ctx, absentID).Return(plume.Post{}, plume.ErrNotFound)

		_, err := svc.ToggleLike(ctx, otherID, absentID)
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrNotFound)
	})
}

func TestService_UploadImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		var storedName string
		blobs.On("Put", ctx, mock.MatchedBy(func(name string) bool {
			storedName = name
			return strings.HasSuffix(name, ".png")
		}), "image/png", int64(4), mock.Anything).Return(nil)

		result, err := svc.UploadImage(ctx, plume.ImageUpload{
			Data:        []byte{0x89, 'P', 'N', 'G'},
			FileName:    "cat.PNG",
			ContentType: "image/png",
			Size:        4,
		})
		require.NoError(t, err)
		assert.Equal(t, storedName, result.FileName)
		assert.Equal(t, plume.DefaultImageBasePath+storedName, result.URL)
		assert.NotEqual(t, "cat.PNG", result.FileName)

		blobs.AssertExpectations(t)
	})

	t.Run("empty buffer", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		_, err := svc.UploadImage(ctx, plume.ImageUpload{})
		require.Error(t, err)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "No image file provided", domainErr.Msg)

		blobs.AssertNotCalled(t, "Put")
	})
}

func TestService_DeleteImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		blobs.On("Delete", ctx, "123-abcd.png").Return(nil)

		err := svc.DeleteImage(ctx, "123-abcd.png")
		require.NoError(t, err)

		blobs.AssertExpectations(t)
	})

	t.Run("missing object", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		blobs.On("Delete", ctx, "gone.png").Return(plume.ErrNotFound)

		err := svc.DeleteImage(ctx, "gone.png")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrNotFound)

		var domainErr *plume.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Image not found", domainErr.Msg)
	})

	t.Run("empty name", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		err := svc.DeleteImage(ctx, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrInvalidInput)

		blobs.AssertNotCalled(t, "Delete")
	})
}

func TestService_Image(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		body := io.NopCloser(strings.NewReader("bytes"))
		info := plume.BlobInfo{Name: "123-abcd.png", ContentType: "image/png", Size: 5}
		blobs.On("Open", ctx, "123-abcd.png").Return(info, body, nil)

		got, rc, err := svc.Image(ctx, "123-abcd.png")
		require.NoError(t, err)
		assert.Equal(t, info, got)
		assert.Equal(t, body, rc)

		blobs.AssertExpectations(t)
	})

	t.Run("missing object", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		blobs.On("Open", ctx, "gone.png").Return(plume.BlobInfo{}, nil, plume.ErrNotFound)

		_, _, err := svc.Image(ctx, "gone.png")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrNotFound)
	})

	t.Run("empty name", func(t *testing.T) {
		svc, _, blobs := newTestService(t)
		ctx := context.Background()

		_, _, err := svc.Image(ctx, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, plume.ErrNotFound)

		blobs.AssertNotCalled(t, "Open")
	})
}

func TestService_MigrateImageURLs(t *testing.T) {
	t.Run("rewrites legacy urls to proxy form", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		legacy := testPost()
		legacy.Image = "http://minio:9000/plume-images/123-abcd.png"

		store.On("PostsWithImagePrefix", ctx, "http://minio:9000/").Return([]plume.Post{legacy}, nil)
		store.On("UpdatePost", ctx, mock.MatchedBy(func(p plume.Post) bool {
			return p.ID == legacy.ID && p.Image == plume.DefaultImageBasePath+"123-abcd.png"
		})).Return(nil)

		migrated, err := svc.MigrateImageURLs(ctx, []string{"http://minio:9000/"})
		require.NoError(t, err)
		assert.Equal(t, 1, migrated)

		store.AssertExpectations(t)
	})

	t.Run("nothing to migrate", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		store.On("PostsWithImagePrefix", ctx, "http://minio:9000/").Return([]plume.Post{}, nil)

		migrated, err := svc.MigrateImageURLs(ctx, []string{"http://minio:9000/"})
		require.NoError(t, err)
		assert.Zero(t, migrated)

		store.AssertNotCalled(t, "UpdatePost")
	})

	t.Run("empty prefix is skipped", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ctx := context.Background()

		migrated, err := svc.MigrateImageURLs(ctx, []string{""})
		require.NoError(t, err)
		assert.Zero(t, migrated)

		store.AssertNotCalled(t, "PostsWithImagePrefix")
	})
}
