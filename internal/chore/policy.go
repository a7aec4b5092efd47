package chore

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/choreward/choreward/internal/model"
)

// Lifecycle policy: pure transformations from a chore record (plus the acting
// identity and clock, passed explicitly) to its next state. Persistence and
// fan-out are the store's problem; nothing here touches the database.

const defaultBasePoints = 10

var (
	ErrTitleRequired    = errors.New("chore: title is required")
	ErrAssigneeRequired = errors.New("chore: assigned user is required")
	ErrActorRequired    = errors.New("chore: acting user is required")
)

// CreateParams carries the caller-supplied fields for a new chore. Zero values
// for BasePoints, Frequency, and NextDueDate are defaulted by Create.
type CreateParams struct {
	HouseholdID    string
	Title          string
	Description    string
	BasePoints     int
	Frequency      model.Frequency
	NextDueDate    time.Time
	AssignedUserID string
}

// Create constructs a new chore record with a fresh ID. actorID becomes the
// immutable creation user.
func Create(p CreateParams, actorID string, now time.Time) (model.Chore, error) {
	if strings.TrimSpace(p.Title) == "" {
		return model.Chore{}, ErrTitleRequired
	}
	if p.AssignedUserID == "" {
		return model.Chore{}, ErrAssigneeRequired
	}
	if actorID == "" {
		return model.Chore{}, ErrActorRequired
	}

	points := p.BasePoints
	if points <= 0 {
		points = defaultBasePoints
	}
	freq := p.Frequency
	if freq == "" {
		freq = model.FrequencyOnce
	}
	due := p.NextDueDate
	if due.IsZero() {
		due = now
	}

	return model.Chore{
		ID:             uuid.NewString(),
		HouseholdID:    p.HouseholdID,
		Title:          strings.TrimSpace(p.Title),
		Description:    NormalizeDescription(p.Description),
		BasePoints:     points,
		Frequency:      freq,
		NextDueDate:    due,
		AssignedUserID: p.AssignedUserID,
		CreationUserID: actorID,
		Status:         model.StatusCreated,
		BiddingState:   model.BiddingStateNone,
		LastUpdated:    now,
		CreatedAt:      now,
	}, nil
}

// NormalizeDescription maps empty input to the NONE sentinel and preserves
// everything else verbatim.
func NormalizeDescription(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.DescriptionNone
	}
	return s
}

// Steal reassigns the chore to newUserID and knocks one point off, floored at
// 1. The policy performs no same-assignee or terminal-state guard; invoking it
// twice decrements twice. Callers enforce those rules.
func Steal(c model.Chore, newUserID string, now time.Time) model.Chore {
	c.AssignedUserID = newUserID
	c.BasePoints = max(1, c.BasePoints-1)
	c.LastUpdated = now
	return c
}

// Force reassigns the chore to newUserID and adds one point as compensation.
// Same guard-free contract as Steal.
func Force(c model.Chore, newUserID string, now time.Time) model.Chore {
	c.AssignedUserID = newUserID
	c.BasePoints++
	c.LastUpdated = now
	return c
}

// Complete marks the chore completed. For recurring frequencies it also
// synthesizes the successor instance: same title, description, points,
// frequency, and both user ids, a fresh ID, status reset to created, and the
// due date advanced by NextOccurrence. One-off chores return a nil successor.
func Complete(c model.Chore, now time.Time) (completed model.Chore, successor *model.Chore) {
	c.Status = model.StatusCompleted
	c.LastUpdated = now

	next, ok := NextOccurrence(c.Frequency, now)
	if !ok {
		return c, nil
	}

	s := c
	s.ID = uuid.NewString()
	s.Status = model.StatusCreated
	s.NextDueDate = next
	s.LastUpdated = now
	s.CreatedAt = now
	return c, &s
}

// NextOccurrence returns the due date of the instance after a completion at
// now. The second return is false when the frequency does not recur, including
// any unrecognized value (fail open, not an error).
func NextOccurrence(f model.Frequency, now time.Time) (time.Time, bool) {
	switch f {
	case model.FrequencyDaily:
		return now.AddDate(0, 0, 1), true
	case model.FrequencyWeekly:
		return now.AddDate(0, 0, 7), true
	case model.FrequencyMonthly:
		return addMonthClamped(now), true
	case model.FrequencyOnce:
		return time.Time{}, false
	}
	return time.Time{}, false
}

// addMonthClamped advances one calendar month, clamping the day to the target
// month's last valid day (Jan 31 -> Feb 28/29). AddDate alone would normalize
// Jan 31 + 1 month into March.
func addMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	// Day 0 of month m+2 is the last day of month m+1.
	last := time.Date(y, m+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > last {
		d = last
	}
	return time.Date(y, m+1, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
