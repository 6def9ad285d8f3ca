package app

import (
	"sort"

	"livequiz/internal/domain"
)

// buildLeaderboard ranks players by accumulated score descending, breaking
// ties by total response time ascending so the faster player wins, and
// keeping join order for exact ties. Player.Score is the source of truth;
// answers only contribute the correctness and timing tallies.
func buildLeaderboard(players []domain.Player, answers []domain.Answer) []domain.LeaderboardEntry {
	type tally struct {
		correct   int
		submitted int
		totalMS   int64
	}
	tallies := make(map[string]*tally, len(players))
	for i := range players {
		tallies[players[i].ID] = &tally{}
	}
	for _, answer := range answers {
		t, ok := tallies[answer.PlayerID]
		if !ok {
			continue
		}
		if answer.IsCorrect {
			t.correct++
		}
		t.submitted++
		t.totalMS += answer.ResponseTimeMS
	}

	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, player := range players {
		t := tallies[player.ID]
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:         player.ID,
			PlayerName:       player.Name,
			Score:            player.Score,
			CorrectAnswers:   t.correct,
			AnswersSubmitted: t.submitted,
			TotalTimeMS:      t.totalMS,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TotalTimeMS < entries[j].TotalTimeMS
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
