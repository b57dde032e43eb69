// Package repositories implements persistence for the playlist → artist mapping and sync run history.
//
// Key Implementations:
//   - [ArtistRepository] : SQLite-backed [models.MembershipStore]
//   - [FileStore] : YAML-backed [models.MembershipStore] stored as config.yml (a "playlists" map of playlist name
//     to artist ids)
//   - [RunRepository] : SQLite-backed [models.RunRecorder] with listing for `discog status`
//
// Artist order is insertion order in both stores. Positions in SQLite come from [nextPosition], which reads and
// increments inside the insert transaction.
package repositories
