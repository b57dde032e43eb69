// Package tasks keeps Spotify playlists in sync with the discographies of a set of artists, with real-time progress
// reporting.
//
// # Core Operations
//
// The [Reconciler] interface defines the operations behind the CLI:
//
//  1. [Reconciler.AddArtist] : follow an artist, add every album the playlist lacks, record the artist
//  2. [Reconciler.RemoveArtist] : unfollow, remove every album from the playlist and its rollover parts, forget the
//     artist
//  3. [Reconciler.Update] : add albums released by recorded artists since the last run
//  4. [Reconciler.Apply] : add or remove albums of several artists without touching the recorded list
//  5. [Reconciler.TotalTracks] : count an artist's tracks
//
// Adding and removing are a two-state machine per (playlist, artist) pair kept in a [models.MembershipStore]. Adding
// a recorded artist or removing an unrecorded one logs a message and returns a no-op [Result].
//
// # Targets and Rollover
//
// A playlist name resolves to a [Target]: the primary playlist plus parts named "<name>-<N>". New tracks always go to
// the primary. When an album would push the primary past the capacity (10,000 tracks), the primary is renamed to the
// next part name and a fresh private primary is created before any track of that album is submitted.
//
// The album diff is computed against every playlist of the target, so reruns submit nothing when nothing changed.
//
// # Mismatch Detection
//
// The target's track total is read before and after each step. When the observed change differs from the number of
// tracks submitted, the [Result] carries a [Mismatch] and a warning is logged. This is never an error: other clients
// editing the playlist and Spotify's own duplicate handling can both cause it.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
