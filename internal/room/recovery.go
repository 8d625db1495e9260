package room

import (
	"fmt"
	"log"

	"tournament-judge/internal/store"
)

// RecoverOrphanedRooms marks every room left in "playing" status as
// crashed. A room that was mid-match when its coordinator process died
// has no live in-memory state to resume into, so rather than silently
// leaving it stuck it is marked crashed for players to see and for a
// tournament to route around. Runs once at startup as a reconciliation
// pass before the live sweep takes over.
func RecoverOrphanedRooms(st *store.Store) (int, error) {
	result := st.DB().Model(&store.Room{}).
		Where("status = ?", store.RoomPlaying).
		Update("status", store.RoomCrashed)
	if result.Error != nil {
		return 0, fmt.Errorf("room: recover orphaned rooms: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("[ROOM] marked %d orphaned room(s) as crashed on startup", result.RowsAffected)
	}
	return int(result.RowsAffected), nil
}
