package store

import (
	"database/sql"
	"fmt"

	"github.com/choreward/choreward/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var freq, status string

	err := scanner.Scan(
		&c.ID, &c.HouseholdID, &c.Title, &c.Description, &c.BasePoints,
		&freq, &c.NextDueDate, &c.AssignedUserID, &c.CreationUserID,
		&status, &c.BiddingState, &c.LastUpdated, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Stored values may predate the current enum set; carry them through
	// unchanged so the fail-open completion rule sees them.
	c.Frequency = model.Frequency(freq)
	c.Status = model.Status(status)
	return &c, nil
}

const choreCols = `id, household_id, title, description, base_points, frequency, next_due_date, assigned_user_id, creation_user_id, status, bidding_state, last_updated, created_at`

const choreUpsert = `INSERT INTO chores (` + choreCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		base_points = excluded.base_points,
		frequency = excluded.frequency,
		next_due_date = excluded.next_due_date,
		assigned_user_id = excluded.assigned_user_id,
		status = excluded.status,
		bidding_state = excluded.bidding_state,
		last_updated = excluded.last_updated`

func choreArgs(c model.Chore) []any {
	return []any{
		c.ID, c.HouseholdID, c.Title, c.Description, c.BasePoints,
		string(c.Frequency), c.NextDueDate.UTC(), c.AssignedUserID, c.CreationUserID,
		string(c.Status), c.BiddingState, c.LastUpdated.UTC(), c.CreatedAt.UTC(),
	}
}

// Create persists a new chore record. Writes are keyed by id and upsert, so
// replaying a create is harmless.
func (s *ChoreStore) Create(c model.Chore) (*model.Chore, error) {
	if _, err := s.db.Exec(choreUpsert, choreArgs(c)...); err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.GetByID(c.ID)
}

// Update rewrites all mutable fields of the record keyed by id.
func (s *ChoreStore) Update(c model.Chore) (*model.Chore, error) {
	if _, err := s.db.Exec(choreUpsert, choreArgs(c)...); err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(c.ID)
}

func (s *ChoreStore) GetByID(id string) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// ListByHousehold returns the household's chores ordered by next due date.
func (s *ChoreStore) ListByHousehold(householdID string) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores WHERE household_id = ? ORDER BY next_due_date ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) ListByAssignee(householdID, userID string) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores WHERE household_id = ? AND assigned_user_id = ? ORDER BY next_due_date ASC, id ASC`,
		householdID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores by assignee: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// SaveCompletion persists a completed chore and its successor, if any, in a
// single transaction. The lifecycle policy itself makes no atomicity promise;
// this store closes that gap since both writes land in the same database.
func (s *ChoreStore) SaveCompletion(completed model.Chore, successor *model.Chore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(choreUpsert, choreArgs(completed)...); err != nil {
		return fmt.Errorf("save completed chore: %w", err)
	}
	if successor != nil {
		if _, err := tx.Exec(choreUpsert, choreArgs(*successor)...); err != nil {
			return fmt.Errorf("save successor chore: %w", err)
		}
	}
	return tx.Commit()
}
