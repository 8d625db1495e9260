package tournament

import (
	"sort"

	"tournament-judge/internal/store"
)

// Standing is one submission's row on a tournament's leaderboard.
type Standing struct {
	SubmissionID string
	Score        float64
	Wins         int
	Losses       int
	Draws        int
}

// Leaderboard returns a tournament's participants sorted by score
// descending, ties broken by wins then fewer losses.
func (s *Service) Leaderboard(tournamentID string) ([]Standing, error) {
	var participants []store.TournamentParticipant
	if err := s.store.DB().Where("tournament_id = ?", tournamentID).Find(&participants).Error; err != nil {
		return nil, err
	}

	standings := make([]Standing, len(participants))
	for i, p := range participants {
		standings[i] = Standing{
			SubmissionID: p.SubmissionID,
			Score:        p.Score,
			Wins:         p.Wins,
			Losses:       p.Losses,
			Draws:        p.Draws,
		}
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		if standings[i].Wins != standings[j].Wins {
			return standings[i].Wins > standings[j].Wins
		}
		return standings[i].Losses < standings[j].Losses
	})
	return standings, nil
}

// recomputeStandings folds every completed match's per-participant
// results into that submission's running TournamentParticipant totals.
// Called once a tournament has no outstanding matches left, so it only
// ever runs over a final, stable set of results.
func (s *Service) recomputeStandings(tournamentID string) error {
	var matches []store.Match
	if err := s.store.DB().Preload("Participants").
		Where("tournament_id = ? AND status = ?", tournamentID, store.MatchCompleted).
		Find(&matches).Error; err != nil {
		return err
	}

	totals := make(map[string]*Standing)
	for _, m := range matches {
		best := 0.0
		for i, p := range m.Participants {
			if i == 0 || p.Score > best {
				best = p.Score
			}
			if _, ok := totals[p.SubmissionID]; !ok {
				totals[p.SubmissionID] = &Standing{SubmissionID: p.SubmissionID}
			}
		}

		leaders := 0
		for _, p := range m.Participants {
			if p.Score == best {
				leaders++
			}
		}

		for _, p := range m.Participants {
			st := totals[p.SubmissionID]
			st.Score += p.Score
			switch {
			case leaders > 1:
				st.Draws++
			case p.Score == best:
				st.Wins++
			default:
				st.Losses++
			}
		}
	}

	for submissionID, st := range totals {
		if err := s.store.DB().Model(&store.TournamentParticipant{}).
			Where("tournament_id = ? AND submission_id = ?", tournamentID, submissionID).
			Updates(map[string]interface{}{
				"score":  st.Score,
				"wins":   st.Wins,
				"losses": st.Losses,
				"draws":  st.Draws,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}
