package plume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Store is the record persistence layer for users, posts and comments.
// Implementations must be safe for concurrent use; every method respects
// context cancellation.
//
// Lookup methods return ErrNotFound when no record matches. CreateUser
// returns ErrConflict when the email is already registered; email
// uniqueness is enforced by the backend, not by callers.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	// UsersByIDs resolves a batch of user ids for joins. Missing ids are
	// silently skipped; the result order is unspecified.
	UsersByIDs(ctx context.Context, ids []string) ([]User, error)
	UpdateUser(ctx context.Context, u User) error

	CreatePost(ctx context.Context, p *Post) error
	PostByID(ctx context.Context, id string) (Post, error)
	// Posts returns one page of posts sorted by creation time descending,
	// plus the total count matching the query.
	Posts(ctx context.Context, q PostQuery) ([]Post, int64, error)
	UpdatePost(ctx context.Context, p Post) error
	DeletePost(ctx context.Context, id string) error
	// AddLike and RemoveLike mutate the likes set atomically within the
	// post record; adding an existing member or removing an absent one is
	// a no-op.
	AddLike(ctx context.Context, postID, userID string) error
	RemoveLike(ctx context.Context, postID, userID string) error
	// AdjustCommentCount shifts the denormalized comment counter by delta.
	// Decrements are floored at zero.
	AdjustCommentCount(ctx context.Context, postID string, delta int) error
	CountPostsByUser(ctx context.Context, userID string) (int64, error)
	// PostsWithImagePrefix returns posts whose image URL starts with the
	// given prefix. Used by the one-time legacy URL migration.
	PostsWithImagePrefix(ctx context.Context, prefix string) ([]Post, error)

	CreateComment(ctx context.Context, c *Comment) error
	CommentByID(ctx context.Context, id string) (Comment, error)
	// CommentsByPost returns all comments for a post sorted ascending by
	// creation time.
	CommentsByPost(ctx context.Context, postID string) ([]Comment, error)
	UpdateComment(ctx context.Context, c Comment) error
	DeleteComment(ctx context.Context, id string) error
	DeleteCommentsByPost(ctx context.Context, postID string) (int64, error)
}

// BlobStore is the binary image storage layer. Open and Delete return
// ErrNotFound when the object does not exist.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, size int64, content io.Reader) error
	Open(ctx context.Context, name string) (BlobInfo, io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// DefaultImageBasePath is the proxy URL prefix under which stored images
// are served back to clients.
const DefaultImageBasePath = "/api/posts/image/"

// MaxPageLimit caps the page size accepted on post listings.
const MaxPageLimit = 100

// MaxPage caps the page number so the skip computed from page*limit stays
// well inside integer range; pages past the data simply come back empty.
const MaxPage = 1_000_000

// Service implements the feed's domain operations over a Store and a
// BlobStore. It is stateless; one instance serves all requests.
type Service struct {
	store         Store
	blobs         BlobStore
	tokens        *Tokens
	bcryptCost    int
	imageBasePath string
}

// ServiceConfig holds the service's process-wide settings.
type ServiceConfig struct {
	Tokens     *Tokens
	BcryptCost int    // 0 means DefaultBcryptCost
	ImagePath  string // proxy URL prefix, "" means DefaultImageBasePath
}

// NewService wires a Service. Store and BlobStore are constructed once at
// startup and passed in explicitly; the service never reaches for globals.
func NewService(store Store, blobs BlobStore, cfg ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, errors.New("new service: store is nil")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("new service: tokens is nil")
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	basePath := cfg.ImagePath
	if basePath == "" {
		basePath = DefaultImageBasePath
	}

	return &Service{
		store:         store,
		blobs:         blobs,
		tokens:        cfg.Tokens,
		bcryptCost:    cost,
		imageBasePath: basePath,
	}, nil
}

// VerifyToken resolves a bearer credential to a user id. Exposed for the
// HTTP authorization middleware.
func (s *Service) VerifyToken(token string) (string, error) {
	return s.tokens.Verify(token)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Signup registers a new account and logs it in. The response carries the
// bearer token and the user's public fields; the password hash is never
// serialized anywhere.
func (s *Service) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return AuthResult{}, E(ErrInvalidInput, "Name, email, and password are required")
	}
	if !emailPattern.MatchString(in.Email) {
		return AuthResult{}, E(ErrInvalidInput, "Invalid email format")
	}

	name := SanitizeName(in.Name)
	if name == "" {
		return AuthResult{}, E(ErrInvalidInput, "Name, email, and password are required")
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("signup: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The store's unique email index is the source of truth; a concurrent
	// signup racing this one still fails there.
	if err := s.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, ErrConflict) {
			return AuthResult{}, E(ErrConflict, "User already exists with this email")
		}
		return AuthResult{}, fmt.Errorf("signup: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("signup: %w", err)
	}

	return AuthResult{Token: token, User: authUser(user)}, nil
}

// Login authenticates by email and password. An unknown email and a wrong
// password produce the identical error, so accounts cannot be enumerated.
func (s *Service) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	if in.Email == "" || in.Password == "" {
		return AuthResult{}, E(ErrInvalidInput, "Email and password are required")
	}

	user, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, E(ErrInvalidCredentials, "Invalid credentials")
		}
		return AuthResult{}, fmt.Errorf("login: %w", err)
	}

	if !CheckPassword(in.Password, user.PasswordHash) {
		return AuthResult{}, E(ErrInvalidCredentials, "Invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("login: %w", err)
	}

	return AuthResult{Token: token, User: authUser(user)}, nil
}

func authUser(u User) AuthUser {
	return AuthUser{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

// parseID validates an opaque record identifier.
func parseID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return E(ErrInvalidID, "Invalid "+what+" ID")
	}
	return nil
}

// joinUsers resolves the authors for a set of records and returns them
// keyed by id. Authors that no longer exist resolve to the zero value.
func (s *Service) joinUsers(ctx context.Context, ids []string) (map[string]PublicUser, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	users, err := s.store.UsersByIDs(ctx, uniq)
	if err != nil {
		return nil, fmt.Errorf("join users: %w", err)
	}

	byID := make(map[string]PublicUser, len(users))
	for _, u := range users {
		byID[u.ID] = u.Public()
	}
	return byID, nil
}
