// Package plume implements a small social-feed backend: accounts with
// signup/login, text posts with optional images, comments, likes, and
// profile editing.
//
// Records live in a document store behind the Store interface (MongoDB,
// SQLite, or PostgreSQL; see the database package) and image blobs live
// behind the BlobStore interface (MinIO or local filesystem; see the blob
// package). Image reads are always proxied through the service so object
// storage locations are never exposed to clients.
//
// # Key Components
//
//   - Service: domain operations combining a Store, a BlobStore and Tokens
//   - Store: record persistence for users, posts and comments
//   - BlobStore: binary image storage
//   - Tokens: signed, expiring bearer credentials
//
// The http package provides the REST surface, config the viper-backed
// configuration loader, and cmd/plume the server CLI.
package plume
