package store

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotClaimed names the case where a claim's target row changed
	// status between read and write, meaning another worker already
	// claimed it. No function in this package returns it:
	// ClaimNextPendingMatch reports that case as (nil, false, nil).
	ErrNotClaimed = errors.New("store: row was claimed by someone else")
	ErrNotFound   = errors.New("store: record not found")
)

// Store is the persistence and claim interface C4 (match worker), C5
// (room state machine) and C7 (healer) all depend on. Every status
// transition that more than one process could attempt concurrently goes
// through a conditional UPDATE ... WHERE status = <expected> and reports
// back whether it actually applied, mirroring the
// "UPDATE ... WHERE status='pending' RETURN AFTER" pattern the match
// watcher used against its row store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for packages (tournament,
// room) that need queries this type doesn't wrap directly.
func (s *Store) DB() *gorm.DB { return s.db }

// ClaimNextPendingMatch picks one pending match for gameType and
// conditionally transitions it to "queued". It returns (nil, false, nil)
// when there is nothing to claim, and (nil, false, nil) - not an error -
// when a race against another worker lost.
func (s *Store) ClaimNextPendingMatch(gameType string) (*Match, bool, error) {
	var candidate Match
	err := s.db.Where("game_type = ? AND status = ?", gameType, MatchPending).
		Order("created_at ASC").
		First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query pending match: %w", err)
	}

	result := s.db.Model(&Match{}).
		Where("id = ? AND status = ?", candidate.ID, MatchPending).
		Updates(map[string]interface{}{"status": MatchQueued})
	if result.Error != nil {
		return nil, false, fmt.Errorf("claim match %s: %w", candidate.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Another worker claimed it between our SELECT and UPDATE.
		return nil, false, nil
	}

	candidate.Status = MatchQueued
	return &candidate, true, nil
}

// MarkRunning transitions a claimed match to running and stamps
// started_at, the last step before the worker hands it to the broker.
func (s *Store) MarkRunning(matchID string) error {
	now := time.Now()
	return s.db.Model(&Match{}).Where("id = ?", matchID).
		Updates(map[string]interface{}{"status": MatchRunning, "started_at": now}).Error
}

// MarkCompleted records final per-participant results and completes the
// match in one transaction.
func (s *Store) MarkCompleted(matchID string, results []MatchParticipant) error {
	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, r := range results {
			if err := tx.Model(&MatchParticipant{}).
				Where("match_id = ? AND submission_id = ?", matchID, r.SubmissionID).
				Updates(map[string]interface{}{"score": r.Score, "result": r.Result}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Match{}).Where("id = ?", matchID).
			Updates(map[string]interface{}{"status": MatchCompleted, "completed_at": now}).Error
	})
}

// MarkFailed records an infrastructure-level failure (compile crash,
// sandbox setup failure, broker panic) that isn't a per-participant
// result.
func (s *Store) MarkFailed(matchID string, reason error) error {
	log.Printf("[STORE] match %s failed: %v", matchID, reason)
	return s.db.Model(&Match{}).Where("id = ?", matchID).
		Updates(map[string]interface{}{"status": MatchFailed, "error_message": reason.Error()}).Error
}

// CreateSubmission persists a new submission row in pending status.
func (s *Store) CreateSubmission(ownerID, gameType, language, sourcePath string) (*Submission, error) {
	sub := &Submission{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		GameType:   gameType,
		Language:   language,
		SourcePath: sourcePath,
		Status:     SubmissionPending,
	}
	if err := s.db.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	return sub, nil
}

// MarkCompiled persists the compiled binary path the first time a
// submission is built, so later matches reuse the artifact instead of
// recompiling it.
func (s *Store) MarkCompiled(submissionID, binaryPath string) error {
	return s.db.Model(&Submission{}).Where("id = ?", submissionID).
		Updates(map[string]interface{}{
			"status":               SubmissionAccepted,
			"compiled_binary_path": binaryPath,
		}).Error
}

// MarkRejected records a submission that failed to compile.
func (s *Store) MarkRejected(submissionID string, reason error) error {
	return s.db.Model(&Submission{}).Where("id = ?", submissionID).
		Updates(map[string]interface{}{
			"status":        SubmissionRejected,
			"error_message": reason.Error(),
		}).Error
}

func (s *Store) GetSubmission(id string) (*Submission, error) {
	var sub Submission
	if err := s.db.First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetMatch(id string) (*Match, error) {
	var m Match
	if err := s.db.Preload("Participants").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// StaleMatches returns matches in status whose updated_at is older than
// olderThan, for the healer's sweep.
func (s *Store) StaleMatches(status string, olderThan time.Duration) ([]Match, error) {
	var matches []Match
	cutoff := time.Now().Add(-olderThan)
	err := s.db.Where("status = ? AND updated_at < ?", status, cutoff).Find(&matches).Error
	return matches, err
}

// TouchPending refreshes updated_at on a still-pending match, conditional
// on it still being pending - the healer's "it's not actually stuck, just
// slow" path.
func (s *Store) TouchPending(matchID string) (bool, error) {
	result := s.db.Model(&Match{}).
		Where("id = ? AND status = ?", matchID, MatchPending).
		Updates(map[string]interface{}{"updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RequeueRunning resets a stuck running match back to pending, the
// healer's recovery path for a worker that died mid-match.
func (s *Store) RequeueRunning(matchID string) (bool, error) {
	result := s.db.Model(&Match{}).
		Where("id = ? AND status = ?", matchID, MatchRunning).
		Updates(map[string]interface{}{
			"status":     MatchPending,
			"started_at": nil,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
