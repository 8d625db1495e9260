package store

import "fmt"

// AppendEvent appends one line to a room's history at the next sequence
// number. The unique (room_id, sequence) index makes a duplicate append
// at the same sequence a no-op failure rather than silent corruption,
// which matters when two goroutines race to persist the same broadcast.
func (s *Store) AppendEvent(roomID, payload string) (*Event, error) {
	var next int
	if err := s.db.Model(&Event{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(sequence), 0) + 1").
		Scan(&next).Error; err != nil {
		return nil, fmt.Errorf("next sequence for room %s: %w", roomID, err)
	}

	event := &Event{RoomID: roomID, Sequence: next, Payload: payload}
	if err := s.db.Create(event).Error; err != nil {
		return nil, fmt.Errorf("append event for room %s: %w", roomID, err)
	}
	return event, nil
}

// Events returns a room's full history in sequence order, used to
// replay to a reconnecting client. Rebuilding a room's membership after
// a coordinator restart reads Room and RoomPlayer rows, not events.
func (s *Store) Events(roomID string) ([]Event, error) {
	var events []Event
	err := s.db.Where("room_id = ?", roomID).Order("sequence ASC").Find(&events).Error
	return events, err
}
