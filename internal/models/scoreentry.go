package models

import (
	"cmp"
	"time"
)

// LeaderboardLimit caps every leaderboard listing.
const LeaderboardLimit = 50

// ScoreEntry is the best result of one nickname.
type ScoreEntry struct {
	Nickname    string
	Score       int
	TotalTimeMs int64
	CreatedAt   time.Time
	SessionID   string
}

// Beats reports whether e is strictly better than other: higher score, or equal score and lower total time.
func (e ScoreEntry) Beats(other ScoreEntry) bool {
	if e.Score != other.Score {
		return e.Score > other.Score
	}
	return e.TotalTimeMs < other.TotalTimeMs
}

// CompareRank orders entries by score descending, total time ascending and creation time descending.
func CompareRank(a, b ScoreEntry) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TotalTimeMs, b.TotalTimeMs); c != 0 {
		return c
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// MergeResult tells what a leaderboard submission did to the stored record.
type MergeResult string

const (
	MergeCreated  MergeResult = "created"
	MergeImproved MergeResult = "improved"
	MergeKept     MergeResult = "kept"
)

// Merge applies the keep-best rule of a submission to the existing record, if any.
func Merge(existing *ScoreEntry, submitted ScoreEntry) (ScoreEntry, MergeResult) {
	switch {
	case existing == nil:
		return submitted, MergeCreated
	case submitted.Beats(*existing):
		return submitted, MergeImproved
	default:
		return *existing, MergeKept
	}
}

// RankedEntry is a leaderboard row with its 1-based position.
type RankedEntry struct {
	Rank int
	ScoreEntry
}

// Rank numbers entries that are already sorted with [CompareRank].
func Rank(entries []ScoreEntry) []RankedEntry {
	ranked := make([]RankedEntry, len(entries))
	for i, e := range entries {
		ranked[i] = RankedEntry{Rank: i + 1, ScoreEntry: e}
	}
	return ranked
}
