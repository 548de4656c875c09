// Package mongo implements plume.Store on MongoDB.
//
// Documents keep the application-generated UUID string as _id, so the
// backend never mints identifiers of its own.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mwrks/plume"
)

// Store provides MongoDB record persistence.
type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
}

// Connect dials the database and ensures the indexes the queries rely on.
func Connect(ctx context.Context, dsn, name string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(name)
	s := &Store{
		client:   client,
		users:    db.Collection("users"),
		posts:    db.Collection("posts"),
		comments: db.Collection("comments"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: users: %w", err)
	}

	_, err = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: posts: %w", err)
	}

	_, err = s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: comments: %w", err)
	}
	return nil
}

// Document shapes. Times are stored as BSON dates.

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Avatar       string    `bson:"avatar"`
	Bio          string    `bson:"bio"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

type postDoc struct {
	ID            string    `bson:"_id"`
	UserID        string    `bson:"userId"`
	Text          string    `bson:"text"`
	Image         string    `bson:"image"`
	Likes         []string  `bson:"likes"`
	CommentsCount int       `bson:"commentsCount"`
	Edited        bool      `bson:"edited"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

type commentDoc struct {
	ID        string    `bson:"_id"`
	PostID    string    `bson:"postId"`
	UserID    string    `bson:"userId"`
	Text      string    `bson:"text"`
	Edited    bool      `bson:"edited"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toUser(d userDoc) plume.User {
	return plume.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Avatar:       d.Avatar,
		Bio:          d.Bio,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func toPost(d postDoc) plume.Post {
	likes := d.Likes
	if likes == nil {
		likes = []string{}
	}
	return plume.Post{
		ID:            d.ID,
		UserID:        d.UserID,
		Text:          d.Text,
		Image:         d.Image,
		Likes:         likes,
		CommentsCount: d.CommentsCount,
		Edited:        d.Edited,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func toComment(d commentDoc) plume.Comment {
	return plume.Comment{
		ID:        d.ID,
		PostID:    d.PostID,
		UserID:    d.UserID,
		Text:      d.Text,
		Edited:    d.Edited,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *plume.User) error {
	doc := userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Avatar:       u.Avatar,
		Bio:          u.Bio,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", plume.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (plume.User, error) {
	return s.userWhere(ctx, bson.M{"_id": id})
}

func (s *Store) UserByEmail(ctx context.Context, email string) (plume.User, error) {
	return s.userWhere(ctx, bson.M{"email": email})
}

func (s *Store) userWhere(ctx context.Context, filter bson.M) (plume.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return plume.User{}, plume.ErrNotFound
		}
		return plume.User{}, fmt.Errorf("get user: %w", err)
	}
	return toUser(doc), nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]plume.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var users []plume.User
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("users by ids: %w", err)
		}
		users = append(users, toUser(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, u plume.User) error {
	result, err := s.users.UpdateByID(ctx, u.ID, bson.M{"$set": bson.M{
		"name":      u.Name,
		"avatar":    u.Avatar,
		"bio":       u.Bio,
		"updatedAt": u.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update user: %w", plume.ErrNotFound)
	}
	return nil
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *plume.Post) error {
	doc := postDoc{
		ID:            p.ID,
		UserID:        p.UserID,
		Text:          p.Text,
		Image:         p.Image,
		Likes:         p.Likes,
		CommentsCount: p.CommentsCount,
		Edited:        p.Edited,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if doc.Likes == nil {
		doc.Likes = []string{}
	}
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s *Store) PostByID(ctx context.Context, id string) (plume.Post, error) {
	var doc postDoc
	err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return plume.Post{}, plume.ErrNotFound
		}
		return plume.Post{}, fmt.Errorf("get post: %w", err)
	}
	return toPost(doc), nil
}

func (s *Store) Posts(ctx context.Context, q plume.PostQuery) ([]plume.Post, int64, error) {
	filter := bson.M{}
	if q.UserID != "" {
		filter["userId"] = q.UserID
	}

	total, err := s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: count: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))

	cursor, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	posts := make([]plume.Post, 0, q.Limit)
	for cursor.Next(ctx) {
		var doc postDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("list posts: %w", err)
		}
		posts = append(posts, toPost(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, p plume.Post) error {
	result, err := s.posts.UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"text":          p.Text,
		"image":         p.Image,
		"likes":         p.Likes,
		"commentsCount": p.CommentsCount,
		"edited":        p.Edited,
		"updatedAt":     p.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update post: %w", plume.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	result, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete post: %w", plume.ErrNotFound)
	}
	return nil
}

func (s *Store) AddLike(ctx context.Context, postID, userID string) error {
	result, err := s.posts.UpdateByID(ctx, postID, bson.M{
		"$addToSet": bson.M{"likes": userID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("add like: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("add like: %w", plume.ErrNotFound)
	}
	return nil
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) error {
	result, err := s.posts.UpdateByID(ctx, postID, bson.M{
		"$pull": bson.M{"likes": userID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("remove like: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("remove like: %w", plume.ErrNotFound)
	}
	return nil
}

func (s *Store) AdjustCommentCount(ctx context.Context, postID string, delta int) error {
	filter := bson.M{"_id": postID}
	if delta < 0 {
		// The counter never goes below zero.
		filter["commentsCount"] = bson.M{"$gt": 0}
	}

	result, err := s.posts.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"commentsCount": delta}})
	if err != nil {
		return fmt.Errorf("adjust comment count: %w", err)
	}
	if result.MatchedCount == 0 {
		// Either the post is gone or the counter already sits at zero.
		count, err := s.posts.CountDocuments(ctx, bson.M{"_id": postID})
		if err != nil {
			return fmt.Errorf("adjust comment count: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("adjust comment count: %w", plume.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) CountPostsByUser(ctx context.Context, userID string) (int64, error) {
	count, err := s.posts.CountDocuments(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func (s *Store) PostsWithImagePrefix(ctx context.Context, prefix string) ([]plume.Post, error) {
	pattern := "^" + regexp.QuoteMeta(prefix)
	cursor, err := s.posts.Find(ctx, bson.M{"image": primitive.Regex{Pattern: pattern}})
	if err != nil {
		return nil, fmt.Errorf("posts with image prefix: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var posts []plume.Post
	for cursor.Next(ctx) {
		var doc postDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("posts with image prefix: %w", err)
		}
		posts = append(posts, toPost(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("posts with image prefix: %w", err)
	}
	return posts, nil
}

// Comments

func (s *Store) CreateComment(ctx context.Context, c *plume.Comment) error {
	doc := commentDoc{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Text:      c.Text,
		Edited:    c.Edited,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if _, err := s.comments.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *Store) CommentByID(ctx context.Context, id string) (plume.Comment, error) {
	var doc commentDoc
	err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return plume.Comment{}, plume.ErrNotFound
		}
		return plume.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return toComment(doc), nil
}

func (s *Store) CommentsByPost(ctx context.Context, postID string) ([]plume.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.comments.Find(ctx, bson.M{"postId": postID}, opts)
	if err != nil {
		return nil, fmt.Errorf("comments by post: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var comments []plume.Comment
	for cursor.Next(ctx) {
		var doc commentDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("comments by post: %w", err)
		}
		comments = append(comments, toComment(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("comments by post: %w", err)
	}
	return comments, nil
}

func (s *Store) UpdateComment(ctx context.Context, c plume.Comment) error {
	result, err := s.comments.UpdateByID(ctx, c.ID, bson.M{"$set": bson.M{
		"text":      c.Text,
		"edited":    c.Edited,
		"updatedAt": c.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update comment: %w", plume.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	result, err := s.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete comment: %w", plume.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID string) (int64, error) {
	result, err := s.comments.DeleteMany(ctx, bson.M{"postId": postID})
	if err != nil {
		return 0, fmt.Errorf("delete comments by post: %w", err)
	}
	return result.DeletedCount, nil
}
