// Package models defines domain entities and persistence interfaces for the tunesync library-sync core.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [StreamingTrack] : Song metadata with ISRC for cross-service matching
//   - [Candidate] : A search result considered as a possible match
//   - [ResolutionResult] : Matched, Ambiguous, or NotFound classification
//   - [Playlist], [LibrarySnapshot] : Library structure from a streaming service
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [CachedTrack] : Cached tracks with ISRC for matching optimization
//   - [SyncOutcome] : Per-track sync results keyed (service, track id) for idempotent re-runs
//
// All persistent entities implement the Model interface providing ID generation, timestamps, and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
