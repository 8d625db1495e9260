package tournament

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tournament-judge/internal/locks"
	"tournament-judge/internal/store"
)

// Service owns the registering -> generating -> running -> completed
// lifecycle for a tournament: joining submissions, generating its
// bracket once enough have joined, and retrying matches that failed
// outright (not the same as a losing result).
type Service struct {
	store    *store.Store
	locks    *locks.LockManager
	notifier *store.Notifier
}

func NewService(st *store.Store, lockManager *locks.LockManager, notifier *store.Notifier) *Service {
	return &Service{store: st, locks: lockManager, notifier: notifier}
}

func lockKey(tournamentID string) string {
	return fmt.Sprintf("tournament:%s", tournamentID)
}

// Create registers a new tournament accepting joins for gameType.
func (s *Service) Create(name, gameType string, minParticipants int, maxParticipants *int) (*store.Tournament, error) {
	if minParticipants < 2 {
		minParticipants = 2
	}
	t := &store.Tournament{
		ID:              uuid.New().String(),
		Name:            name,
		GameType:        gameType,
		Format:          store.FormatRoundRobin,
		Status:          store.TournamentRegistering,
		MinParticipants: minParticipants,
		MaxParticipants: maxParticipants,
	}
	if err := s.store.DB().Create(t).Error; err != nil {
		return nil, fmt.Errorf("tournament: create: %w", err)
	}
	return t, nil
}

// Join enrolls submissionID in tournamentID, guarded by a distributed
// lock so two concurrent joins can't both slip past a capacity check
// that's about to reject the next one.
func (s *Service) Join(ctx context.Context, tournamentID, submissionID string) error {
	lock, err := s.locks.AcquireLock(ctx, lockKey(tournamentID), locks.DefaultLockTTL)
	if err != nil {
		return fmt.Errorf("tournament: acquire join lock: %w", err)
	}
	defer lock.Release(ctx)

	var t store.Tournament
	if err := s.store.DB().First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	if t.Status != store.TournamentRegistering {
		return ErrNotRegistering
	}

	var count int64
	if err := s.store.DB().Model(&store.TournamentParticipant{}).
		Where("tournament_id = ?", tournamentID).Count(&count).Error; err != nil {
		return err
	}
	if t.MaxParticipants != nil && int(count) >= *t.MaxParticipants {
		return ErrTournamentFull
	}

	var existing int64
	s.store.DB().Model(&store.TournamentParticipant{}).
		Where("tournament_id = ? AND submission_id = ?", tournamentID, submissionID).Count(&existing)
	if existing > 0 {
		return ErrAlreadyJoined
	}

	participant := &store.TournamentParticipant{
		TournamentID: tournamentID,
		SubmissionID: submissionID,
		JoinedAt:     time.Now(),
	}
	if err := s.store.DB().Create(participant).Error; err != nil {
		return fmt.Errorf("tournament: join: %w", err)
	}
	return nil
}

// Start generates the bracket and transitions the tournament to
// running. The registering -> generating transition is a conditional
// UPDATE so two callers racing to start the same tournament only
// generate the bracket once.
func (s *Service) Start(ctx context.Context, tournamentID string) error {
	var t store.Tournament
	if err := s.store.DB().First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	if t.Format != store.FormatRoundRobin {
		return ErrUnsupportedFormat
	}

	var participants []store.TournamentParticipant
	if err := s.store.DB().Where("tournament_id = ?", tournamentID).Find(&participants).Error; err != nil {
		return err
	}
	if len(participants) < t.MinParticipants {
		return ErrNotEnoughParticipants
	}

	result := s.store.DB().Model(&store.Tournament{}).
		Where("id = ? AND status = ?", tournamentID, store.TournamentRegistering).
		Updates(map[string]interface{}{"status": store.TournamentGenerating})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyStarted
	}

	matches := GenerateRoundRobinMatches(tournamentID, t.GameType, participants)
	for i := range matches {
		matches[i].ID = uuid.New().String()
		for j := range matches[i].Participants {
			matches[i].Participants[j].MatchID = matches[i].ID
		}
	}
	if err := s.store.DB().Create(&matches).Error; err != nil {
		return fmt.Errorf("tournament: persist bracket: %w", err)
	}

	now := time.Now()
	if err := s.store.DB().Model(&store.Tournament{}).Where("id = ?", tournamentID).
		Updates(map[string]interface{}{"status": store.TournamentRunning, "started_at": now}).Error; err != nil {
		return fmt.Errorf("tournament: transition to running: %w", err)
	}

	for range matches {
		s.notifier.PublishPendingMatch(ctx, t.GameType)
	}
	log.Printf("[TOURNAMENT] %s started with %d matches across %d participants", tournamentID, len(matches), len(participants))
	return nil
}

// Complete marks a tournament completed once every one of its matches
// has left the pending/queued/running states.
func (s *Service) Complete(tournamentID string) error {
	var outstanding int64
	if err := s.store.DB().Model(&store.Match{}).
		Where("tournament_id = ? AND status IN ?", tournamentID, []string{store.MatchPending, store.MatchQueued, store.MatchRunning}).
		Count(&outstanding).Error; err != nil {
		return err
	}
	if outstanding > 0 {
		return fmt.Errorf("tournament: %d match(es) still outstanding", outstanding)
	}

	if err := s.recomputeStandings(tournamentID); err != nil {
		return err
	}

	now := time.Now()
	return s.store.DB().Model(&store.Tournament{}).Where("id = ?", tournamentID).
		Updates(map[string]interface{}{"status": store.TournamentCompleted, "completed_at": now}).Error
}

// RetryFailedMatches resets every failed match in a tournament back to
// pending so the worker pool picks them up again, then re-publishes a
// wakeup for each. This is distinct from a match that completed with a
// losing result - only infrastructure-level failures are retried.
func (s *Service) RetryFailedMatches(ctx context.Context, tournamentID string) (int, error) {
	var t store.Tournament
	if err := s.store.DB().First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTournamentNotFound
		}
		return 0, err
	}

	var failed []store.Match
	if err := s.store.DB().Where("tournament_id = ? AND status = ?", tournamentID, store.MatchFailed).Find(&failed).Error; err != nil {
		return 0, err
	}

	retried := 0
	for _, m := range failed {
		result := s.store.DB().Model(&store.Match{}).
			Where("id = ? AND status = ?", m.ID, store.MatchFailed).
			Updates(map[string]interface{}{"status": store.MatchPending, "error_message": "", "started_at": nil, "completed_at": nil})
		if result.Error != nil {
			log.Printf("[TOURNAMENT] failed to retry match %s: %v", m.ID, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			retried++
			s.notifier.PublishPendingMatch(ctx, t.GameType)
		}
	}
	return retried, nil
}
