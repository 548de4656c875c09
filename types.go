package plume

import "time"

// User is an account record. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is the subset of User embedded in post and comment views.
type PublicUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Public returns the user's public fields.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// Profile is the public view of a user plus a live count of their posts.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	PostCount int64     `json:"postCount"`
}

// Post is a feed entry. Likes holds the ids of users who liked the post
// (set semantics). CommentsCount is denormalized and maintained on comment
// create/delete rather than recomputed.
type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Text          string    `json:"text"`
	Image         string    `json:"image,omitempty"`
	Likes         []string  `json:"likes"`
	CommentsCount int       `json:"commentsCount"`
	Edited        bool      `json:"edited"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LikedBy reports whether userID is in the post's likes set.
// Like sets are expected to stay small enough for a linear scan.
func (p Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment belongs to a post. Deleted together with its parent.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostView is a post joined with its author's public fields.
type PostView struct {
	Post
	User PublicUser `json:"user"`
}

// CommentView is a comment joined with its author's public fields.
type CommentView struct {
	Comment
	User PublicUser `json:"user"`
}

// PostQuery selects a page of posts, optionally filtered to one author.
// Page and Limit are normalized by the service (defaults 1/10, limit
// clamped to MaxPageLimit).
type PostQuery struct {
	UserID string
	Page   int
	Limit  int
}

// Pagination is the page metadata returned alongside post listings.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// PostPage is one page of post views plus pagination metadata.
type PostPage struct {
	Posts      []PostView `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// AuthUser is the user shape returned by signup and login: public fields
// plus the email, never the password hash.
type AuthUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// AuthResult is the signup/login response body.
type AuthResult struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// SignupInput carries the raw signup fields before validation.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput carries the raw login fields.
type LoginInput struct {
	Email    string
	Password string
}

// UserUpdate carries a profile update. Nil fields are left untouched.
type UserUpdate struct {
	Name   *string
	Avatar *string
	Bio    *string
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	LikesCount int  `json:"likesCount"`
	Liked      bool `json:"liked"`
}

// ImageUpload is a validated in-memory image handed to the service by the
// HTTP intake layer: the buffer has already passed the size ceiling and the
// MIME allow-list.
type ImageUpload struct {
	Data        []byte
	FileName    string
	ContentType string
	Size        int64
}

// ImageResult is returned after a successful upload. URL is the proxy URL,
// never the object store's native location.
type ImageResult struct {
	URL      string `json:"imageUrl"`
	FileName string `json:"fileName"`
}

// BlobInfo describes a stored object.
type BlobInfo struct {
	Name        string
	ContentType string
	Size        int64
}
