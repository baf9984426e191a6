package domain

import "time"

// Suggestion is a directed, explained edge from a source game to a target
// game. The list stored on a game never holds two entries with the same
// target app id.
type Suggestion struct {
	TargetAppID int64     `json:"target_app_id"`
	Title       string    `json:"title"`
	Reason      string    `json:"reason"`
	AddedAt     time.Time `json:"added_at"`
}

// MergeSuggestions merges freshly generated suggestions into an existing
// list. Existing entries keep their list position; a fresh entry for the
// same target overwrites the explanation in place (freshest explanation
// wins); fresh targets not yet present are appended in generation order.
// Existing entries with no fresh counterpart are preserved. The second
// return value lists the targets that were not present before the merge.
func MergeSuggestions(existing, fresh []Suggestion) ([]Suggestion, []int64) {
	merged := make([]Suggestion, 0, len(existing)+len(fresh))
	index := make(map[int64]int, len(existing))

	for _, s := range existing {
		if s.TargetAppID == 0 {
			continue
		}
		if _, ok := index[s.TargetAppID]; ok {
			// Older rows may carry duplicate targets; keep the first.
			continue
		}
		index[s.TargetAppID] = len(merged)
		merged = append(merged, s)
	}

	var added []int64
	for _, s := range fresh {
		if s.TargetAppID == 0 {
			continue
		}
		if i, ok := index[s.TargetAppID]; ok {
			merged[i].Title = s.Title
			merged[i].Reason = s.Reason
			continue
		}
		index[s.TargetAppID] = len(merged)
		merged = append(merged, s)
		added = append(added, s.TargetAppID)
	}

	return merged, added
}

// ContainsTarget reports whether list already points at target.
func ContainsTarget(list []Suggestion, target int64) bool {
	for _, s := range list {
		if s.TargetAppID == target {
			return true
		}
	}
	return false
}
