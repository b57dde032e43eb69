// Package models defines domain entities and persistence interfaces for discog.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs mapped from Spotify responses
//   - [User] : The authenticated Spotify account
//   - [Playlist] : Playlist metadata including its current track count
//   - [Artist], [Album], [Track] : Catalog items, compared only by ID
//
// 2. Persistent state
//   - [MembershipStore] : The durable playlist → artist ids mapping that drives syncs
//   - [SyncRun] : One reconciliation run, recorded by a [RunRecorder]
package models
