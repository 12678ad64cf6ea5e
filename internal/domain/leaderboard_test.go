package domain

import (
	"reflect"
	"testing"
)

func TestRankEntriesTotalOrder(t *testing.T) {
	entries := []LeaderboardEntry{
		{Nickname: "carol", Score: 10, TimeTaken: 5000, CompletedAt: 300},
		{Nickname: "alice", Score: 20, TimeTaken: 9000, CompletedAt: 100},
		{Nickname: "dave", Score: 10, TimeTaken: 5000, CompletedAt: 200},
		{Nickname: "bob", Score: 10, TimeTaken: 4000, CompletedAt: 400},
	}

	ranked := RankEntries(entries)

	wantOrder := []string{"alice", "bob", "dave", "carol"}
	for i, nickname := range wantOrder {
		if ranked[i].Nickname != nickname {
			t.Fatalf("position %d: expected %s, got %s", i, nickname, ranked[i].Nickname)
		}
		if ranked[i].Rank != i+1 {
			t.Fatalf("position %d: expected rank %d, got %d", i, i+1, ranked[i].Rank)
		}
	}
}

func TestRankEntriesIdempotent(t *testing.T) {
	build := func() []LeaderboardEntry {
		return []LeaderboardEntry{
			{Nickname: "b", Score: 5, TimeTaken: 100, CompletedAt: 1},
			{Nickname: "a", Score: 5, TimeTaken: 100, CompletedAt: 1},
			{Nickname: "c", Score: 7, TimeTaken: 900, CompletedAt: 2},
		}
	}
	first := RankEntries(build())
	second := RankEntries(build())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ranking not reproducible:\n%v\n%v", first, second)
	}
	// Re-ranking an already ranked slice must not change it.
	again := RankEntries(append([]LeaderboardEntry(nil), first...))
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("re-ranking changed order:\n%v\n%v", first, again)
	}
}

func TestEntriesFromAttempts(t *testing.T) {
	attempts := []*Attempt{
		{QuizID: 1, User: "0xabc", Nickname: "alice", Score: 10, TimeTaken: 1200, CompletedAt: 42},
	}
	entries := EntriesFromAttempts(attempts)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := LeaderboardEntry{Nickname: "alice", Score: 10, TimeTaken: 1200, CompletedAt: 42}
	if entries[0] != want {
		t.Fatalf("expected %+v, got %+v", want, entries[0])
	}
}
