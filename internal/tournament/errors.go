// Package tournament groups a set of submissions into a bracket for one
// game type, generates its matches, and tracks standings.
package tournament

import "errors"

var (
	ErrTournamentNotFound       = errors.New("tournament: not found")
	ErrNotRegistering           = errors.New("tournament: not accepting registrations")
	ErrTournamentFull           = errors.New("tournament: at capacity")
	ErrAlreadyJoined            = errors.New("tournament: submission already joined")
	ErrNotEnoughParticipants    = errors.New("tournament: fewer than min_participants joined")
	ErrAlreadyStarted           = errors.New("tournament: already started or completed")
	ErrUnsupportedFormat        = errors.New("tournament: only round_robin is implemented")
)
