package domain

import "sort"

// EntriesFromAttempts builds one unranked leaderboard entry per attempt.
func EntriesFromAttempts(attempts []*Attempt) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(attempts))
	for _, attempt := range attempts {
		entries = append(entries, LeaderboardEntry{
			Nickname:    attempt.Nickname,
			Score:       attempt.Score,
			TimeTaken:   attempt.TimeTaken,
			CompletedAt: attempt.CompletedAt,
		})
	}
	return entries
}

// RankEntries sorts entries into the board's total order and assigns 1-based
// ranks: score descending, then time taken ascending, then completion time
// ascending (earliest finisher wins ties), then nickname as a last resort so
// repeated computations from the same attempt set always agree.
func RankEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TimeTaken != b.TimeTaken {
			return a.TimeTaken < b.TimeTaken
		}
		if a.CompletedAt != b.CompletedAt {
			return a.CompletedAt < b.CompletedAt
		}
		return a.Nickname < b.Nickname
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
