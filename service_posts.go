package plume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func validatePostText(text string) error {
	if strings.TrimSpace(text) == "" {
		return E(ErrInvalidInput, "Text is required")
	}
	// The cap applies to the raw input; sanitization may grow it further
	// through escaping.
	if utf8.RuneCountInString(text) > MaxPostLen {
		return E(ErrInvalidInput, "Text must be 500 characters or less")
	}
	return nil
}

// CreatePost persists a new post owned by the caller, with an empty likes
// set and a zero comment count, and returns it joined with the owner's
// public fields.
func (s *Service) CreatePost(ctx context.Context, callerID, text, image string) (PostView, error) {
	if err := validatePostText(text); err != nil {
		return PostView{}, err
	}

	now := time.Now().UTC()
	post := Post{
		ID:        uuid.NewString(),
		UserID:    callerID,
		Text:      SanitizePostText(text),
		Image:     image,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreatePost(ctx, &post); err != nil {
		return PostView{}, fmt.Errorf("create post: %w", err)
	}

	return s.postView(ctx, post)
}

// Posts returns one page of the feed, newest first, optionally filtered to
// a single author. Page and limit default to 1 and 10; the limit is capped
// at MaxPageLimit.
func (s *Service) Posts(ctx context.Context, q PostQuery) (PostPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}

	posts, total, err := s.store.Posts(ctx, q)
	if err != nil {
		return PostPage{}, fmt.Errorf("list posts: %w", err)
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}
	authors, err := s.joinUsers(ctx, ids)
	if err != nil {
		return PostPage{}, fmt.Errorf("list posts: %w", err)
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, PostView{Post: p, User: authors[p.UserID]})
	}

	pages := total / int64(q.Limit)
	if total%int64(q.Limit) != 0 {
		pages++
	}

	return PostPage{
		Posts: views,
		Pagination: Pagination{
			Page:  q.Page,
			Limit: q.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

// Post fetches a single post joined with its author.
func (s *Service) Post(ctx context.Context, id string) (PostView, error) {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	return s.postView(ctx, post)
}

// EditPost replaces the post's text and sets the edited flag. Owner only.
func (s *Service) EditPost(ctx context.Context, callerID, id, text string) (PostView, error) {
	if err := validatePostText(text); err != nil {
		return PostView{}, err
	}

	post, err := s.getPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	if post.UserID != callerID {
		return PostView{}, E(ErrForbidden, "Access denied. You can only edit your own posts")
	}

	post.Text = SanitizePostText(text)
	post.Edited = true
	post.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdatePost(ctx, post); err != nil {
		return PostView{}, fmt.Errorf("edit post: %w", err)
	}

	return s.postView(ctx, post)
}

// DeletePost removes a post and all of its comments. Owner only. The
// cascade is sequential, comments first: a failure in between leaves the
// post in place with some comments already gone, which the next delete
// attempt cleans up.
func (s *Service) DeletePost(ctx context.Context, callerID, id string) error {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != callerID {
		return E(ErrForbidden, "Access denied. You can only delete your own posts")
	}

	removed, err := s.store.DeleteCommentsByPost(ctx, id)
	if err != nil {
		return fmt.Errorf("delete post: cascade comments: %w", err)
	}
	if removed > 0 {
		slog.Debug("cascade deleted comments", "post", id, "count", removed)
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// ToggleLike flips the caller's membership in the post's likes set and
// returns the resulting count and state. Any authenticated user may like
// any post, including their own.
func (s *Service) ToggleLike(ctx context.Context, callerID, id string) (LikeResult, error) {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return LikeResult{}, err
	}

	liked := post.LikedBy(callerID)
	if liked {
		err = s.store.RemoveLike(ctx, id, callerID)
	} else {
		err = s.store.AddLike(ctx, id, callerID)
	}
	if err != nil {
		return LikeResult{}, fmt.Errorf("toggle like: %w", err)
	}

	count := len(post.Likes)
	if liked {
		count--
	} else {
		count++
	}

	return LikeResult{LikesCount: count, Liked: !liked}, nil
}

// UploadImage stores a validated image buffer under a collision-resistant
// name and returns the proxy URL for it. The intake layer has already
// enforced the size ceiling and the MIME allow-list.
func (s *Service) UploadImage(ctx context.Context, up ImageUpload) (ImageResult, error) {
	if len(up.Data) == 0 {
		return ImageResult{}, E(ErrInvalidInput, "No image file provided")
	}

	name := imageFileName(up.FileName)
	if err := s.blobs.Put(ctx, name, up.ContentType, up.Size, bytes.NewReader(up.Data)); err != nil {
		return ImageResult{}, fmt.Errorf("upload image: %w", err)
	}

	return ImageResult{URL: s.imageBasePath + name, FileName: name}, nil
}

// DeleteImage removes a stored image by name. Authentication is required
// but ownership is not checked: blobs carry no owner record, so any
// authenticated user can delete any image it knows the name of.
func (s *Service) DeleteImage(ctx context.Context, fileName string) error {
	if fileName == "" {
		return E(ErrInvalidInput, "File name is required")
	}

	if err := s.blobs.Delete(ctx, fileName); err != nil {
		if errors.Is(err, ErrNotFound) {
			return E(ErrNotFound, "Image not found")
		}
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// Image opens a stored image for streaming back to the client, with the
// content type recorded at upload. The caller closes the reader.
func (s *Service) Image(ctx context.Context, fileName string) (BlobInfo, io.ReadCloser, error) {
	if fileName == "" {
		return BlobInfo{}, nil, E(ErrNotFound, "Image not found")
	}

	info, rc, err := s.blobs.Open(ctx, fileName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return BlobInfo{}, nil, E(ErrNotFound, "Image not found")
		}
		return BlobInfo{}, nil, fmt.Errorf("open image: %w", err)
	}
	return info, rc, nil
}

// MigrateImageURLs rewrites post image fields that still point directly at
// the object store into proxy form. It runs once at startup; once no URLs
// match the legacy prefixes it is a no-op.
func (s *Service) MigrateImageURLs(ctx context.Context, legacyPrefixes []string) (int, error) {
	migrated := 0
	for _, prefix := range legacyPrefixes {
		if prefix == "" {
			continue
		}

		posts, err := s.store.PostsWithImagePrefix(ctx, prefix)
		if err != nil {
			return migrated, fmt.Errorf("migrate image urls: %w", err)
		}

		for _, post := range posts {
			name := post.Image[strings.LastIndex(post.Image, "/")+1:]
			if name == "" {
				continue
			}
			post.Image = s.imageBasePath + name
			if err := s.store.UpdatePost(ctx, post); err != nil {
				return migrated, fmt.Errorf("migrate image urls: post %s: %w", post.ID, err)
			}
			migrated++
		}
	}
	return migrated, nil
}

func (s *Service) getPost(ctx context.Context, id string) (Post, error) {
	if err := parseID(id, "post"); err != nil {
		return Post{}, err
	}
	post, err := s.store.PostByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Post{}, E(ErrNotFound, "Post not found")
		}
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (s *Service) postView(ctx context.Context, post Post) (PostView, error) {
	authors, err := s.joinUsers(ctx, []string{post.UserID})
	if err != nil {
		return PostView{}, err
	}
	return PostView{Post: post, User: authors[post.UserID]}, nil
}

// imageFileName builds a collision-resistant object name: millisecond
// timestamp plus a short random suffix, keeping the original extension.
func imageFileName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}
