package tournament

import "tournament-judge/internal/store"

// GenerateRoundRobinMatches pairs every participant against every other
// participant exactly once per direction, so with submissions s1 and s2
// both "s1 vs s2" and "s2 vs s1" are produced - grounded in the
// reference tournament service's round-robin generator, which treats
// seat order as meaningful (a game can be asymmetric, e.g. who moves
// first) rather than collapsing a pairing to one match.
func GenerateRoundRobinMatches(tournamentID, gameType string, participants []store.TournamentParticipant) []store.Match {
	var matches []store.Match
	round := 1
	for i := range participants {
		for j := range participants {
			if i == j {
				continue
			}
			matches = append(matches, store.Match{
				TournamentID: &tournamentID,
				GameType:     gameType,
				RoundNumber:  round,
				Status:       store.MatchPending,
				Participants: []store.MatchParticipant{
					{SubmissionID: participants[i].SubmissionID, Seat: 0},
					{SubmissionID: participants[j].SubmissionID, Seat: 1},
				},
			})
		}
		round++
	}
	return matches
}
