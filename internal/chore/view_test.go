package chore

import (
	"testing"
	"time"

	"github.com/choreward/choreward/internal/model"
)

func viewFixture() []model.Chore {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []model.Chore{
		{ID: "a", AssignedUserID: "u1", Status: model.StatusCreated, NextDueDate: due.AddDate(0, 0, 2)},
		{ID: "b", AssignedUserID: "u2", Status: model.StatusCreated, NextDueDate: due},
		{ID: "c", AssignedUserID: "u1", Status: model.StatusCompleted, NextDueDate: due.AddDate(0, 0, 1)},
		{ID: "d", AssignedUserID: "u2", Status: model.StatusCompleted, NextDueDate: due.AddDate(0, 0, 3)},
	}
}

func ids(chores []model.Chore) []string {
	out := make([]string, len(chores))
	for i, c := range chores {
		out[i] = c.ID
	}
	return out
}

func TestFilterMine(t *testing.T) {
	got := Filter(viewFixture(), FilterMine, "u1", false)
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("mine without completed = %v, want [a]", ids(got))
	}

	got = Filter(viewFixture(), FilterMine, "u1", true)
	if len(got) != 2 {
		t.Errorf("mine with completed = %v, want [a c]", ids(got))
	}
}

func TestFilterOthers(t *testing.T) {
	got := Filter(viewFixture(), FilterOthers, "u1", false)
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("others = %v, want [b]", ids(got))
	}
}

func TestFilterAllExcludesCompletedByDefault(t *testing.T) {
	got := Filter(viewFixture(), FilterAll, "u1", false)
	if len(got) != 2 {
		t.Errorf("all without completed = %v, want [a b]", ids(got))
	}
	got = Filter(viewFixture(), FilterAll, "u1", true)
	if len(got) != 4 {
		t.Errorf("all with completed = %v, want all four", ids(got))
	}
}

func TestMineProjection(t *testing.T) {
	got := Mine(viewFixture(), "u1")
	if len(got) != 2 {
		t.Errorf("mine projection = %v, want [a c]", ids(got))
	}

	if got := Mine(viewFixture(), ""); len(got) != 0 {
		t.Errorf("mine with unknown identity = %v, want empty", ids(got))
	}
}

func TestSortByDueDate(t *testing.T) {
	chores := viewFixture()
	SortByDueDate(chores)

	want := []string{"b", "c", "a", "d"}
	got := ids(chores)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted order = %v, want %v", got, want)
		}
	}
}

func TestParseFilterMode(t *testing.T) {
	if m, err := ParseFilterMode(""); err != nil || m != FilterAll {
		t.Errorf("empty mode = %q, %v; want all", m, err)
	}
	if _, err := ParseFilterMode("somebody"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestOverdue(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	open := model.Chore{Status: model.StatusCreated, NextDueDate: now.AddDate(0, 0, -1)}
	if !open.Overdue(now) {
		t.Error("past-due open chore should be overdue")
	}

	done := model.Chore{Status: model.StatusCompleted, NextDueDate: now.AddDate(0, 0, -1)}
	if done.Overdue(now) {
		t.Error("completed chore is never overdue")
	}

	future := model.Chore{Status: model.StatusCreated, NextDueDate: now.AddDate(0, 0, 1)}
	if future.Overdue(now) {
		t.Error("future chore is not overdue")
	}
}
