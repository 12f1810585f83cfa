package syncclient

import (
	"sort"

	"couple-notes-backend/internal/models"
)

// MergeNotes unions remote and local notes by id and sorts them newest first.
// When both sides hold the same id the remote copy is kept.
func MergeNotes(remote, local []models.Note) []models.Note {
	merged := make([]models.Note, 0, len(remote)+len(local))
	seen := make(map[string]struct{}, len(remote)+len(local))

	for _, list := range [][]models.Note{remote, local} {
		for _, n := range list {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			merged = append(merged, n)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})
	return merged
}

// dropIDs removes the notes whose id is in ids
func dropIDs(notes []models.Note, ids map[string]struct{}) []models.Note {
	if len(ids) == 0 {
		return notes
	}
	kept := notes[:0]
	for _, n := range notes {
		if _, ok := ids[n.ID]; !ok {
			kept = append(kept, n)
		}
	}
	return kept
}
