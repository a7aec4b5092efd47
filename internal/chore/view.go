package chore

import (
	"fmt"
	"sort"

	"github.com/choreward/choreward/internal/model"
)

// FilterMode selects which assignees a chore list view includes.
type FilterMode string

const (
	FilterAll    FilterMode = "all"
	FilterMine   FilterMode = "mine"
	FilterOthers FilterMode = "others"
)

func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case FilterAll, FilterMine, FilterOthers:
		return FilterMode(s), nil
	case "":
		return FilterAll, nil
	}
	return "", fmt.Errorf("unknown filter mode %q", s)
}

// Filter returns the chores matching the mode relative to userID, dropping
// completed records unless showCompleted is set. The input slice is not
// modified.
func Filter(chores []model.Chore, mode FilterMode, userID string, showCompleted bool) []model.Chore {
	out := make([]model.Chore, 0, len(chores))
	for _, c := range chores {
		if !showCompleted && c.Completed() {
			continue
		}
		switch mode {
		case FilterMine:
			if c.AssignedUserID != userID {
				continue
			}
		case FilterOthers:
			if c.AssignedUserID == userID {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Mine is the "my chores" projection: open and completed chores assigned to
// userID. An empty userID yields an empty projection.
func Mine(chores []model.Chore, userID string) []model.Chore {
	if userID == "" {
		return []model.Chore{}
	}
	return Filter(chores, FilterMine, userID, true)
}

// SortByDueDate orders chores ascending by next due date, breaking ties by ID
// so the order is stable across snapshots.
func SortByDueDate(chores []model.Chore) {
	sort.Slice(chores, func(i, j int) bool {
		if chores[i].NextDueDate.Equal(chores[j].NextDueDate) {
			return chores[i].ID < chores[j].ID
		}
		return chores[i].NextDueDate.Before(chores[j].NextDueDate)
	})
}
