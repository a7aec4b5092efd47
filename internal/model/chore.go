package model

import (
	"fmt"
	"time"
)

// DescriptionNone is the sentinel stored when a chore is created or edited
// with an empty description.
const DescriptionNone = "NONE"

// Frequency describes how often a chore recurs.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency validates a wire-level frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// Recurring reports whether completing a chore with this frequency should
// schedule a successor. Unrecognized values fall open to non-recurring.
func (f Frequency) Recurring() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	case FrequencyOnce:
		return false
	}
	return false
}

// Status is the lifecycle state of a single chore instance.
type Status string

const (
	StatusCreated   Status = "created"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCreated, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// BiddingStateNone is the only bidding state in use. The column is reserved
// for a future bidding feature.
const BiddingStateNone = "none"

// Chore is a single assignable task instance within a household. Recurring
// chores are represented as a chain of instances: completing one spawns the
// next with a fresh ID.
type Chore struct {
	ID             string    `json:"id"`
	HouseholdID    string    `json:"household_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	BasePoints     int       `json:"base_points"`
	Frequency      Frequency `json:"frequency"`
	NextDueDate    time.Time `json:"next_due_date"`
	AssignedUserID string    `json:"assigned_user_id"`
	CreationUserID string    `json:"creation_user_id"`
	Status         Status    `json:"status"`
	BiddingState   string    `json:"bidding_state"`
	LastUpdated    time.Time `json:"last_updated"`
	CreatedAt      time.Time `json:"created_at"`
}

// Completed reports whether this instance has reached its terminal state.
func (c Chore) Completed() bool {
	return c.Status == StatusCompleted
}

// Overdue reports whether the chore is past due and still open.
func (c Chore) Overdue(now time.Time) bool {
	return c.NextDueDate.Before(now) && c.Status != StatusCompleted
}
