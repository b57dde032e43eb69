package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/shared"
)

var (
	_ models.MembershipStore = (*ArtistRepository)(nil)
	_ models.MembershipStore = (*FileStore)(nil)
	_ models.RunRecorder     = (*RunRepository)(nil)
)

// OpenMembershipStore builds the store selected by cfg.
//
// The sqlite backend reuses db, which must be non-nil in that case.
func OpenMembershipStore(cfg shared.StoreConfig, db *sql.DB) (models.MembershipStore, error) {
	switch cfg.Backend {
	case shared.StoreYAML:
		return NewFileStore(shared.ExpandPath(cfg.Path)), nil
	case shared.StoreSQLite:
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite store requires a database", shared.ErrInvalidConfig)
		}
		return NewArtistRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// nextPosition returns the next artist position for playlist within tx.
func nextPosition(tx *sql.Tx, playlist string) (int, error) {
	var position int
	err := tx.QueryRow("SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_artists WHERE playlist = ?", playlist).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("failed to get next position: %w", err)
	}
	return position, nil
}
