package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/choreward/choreward/internal/auth"
	"github.com/choreward/choreward/internal/chore"
	"github.com/choreward/choreward/internal/model"
	"github.com/choreward/choreward/internal/store"
	"github.com/choreward/choreward/internal/stream"
)

type ChoreHandler struct {
	choreStore     *store.ChoreStore
	householdStore *store.HouseholdStore
	broker         *stream.Broker
	logger         *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, hs *store.HouseholdStore, broker *stream.Broker, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{choreStore: cs, householdStore: hs, broker: broker, logger: logger}
}

func (h *ChoreHandler) notify(householdID string) {
	if h.broker != nil {
		h.broker.Notify(householdID)
	}
}

type createChoreRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	BasePoints     int        `json:"base_points"`
	Frequency      string     `json:"frequency"`
	NextDueDate    *time.Time `json:"next_due_date"`
	AssignedUserID string     `json:"assigned_user_id"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req createChoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.AssignedUserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "assigned_user_id is required"})
		return
	}

	var freq model.Frequency
	if req.Frequency != "" {
		var err error
		freq, err = model.ParseFrequency(req.Frequency)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown frequency"})
			return
		}
	}

	if !h.isMember(w, ac.HouseholdID, req.AssignedUserID) {
		return
	}

	now := time.Now().UTC()
	params := chore.CreateParams{
		HouseholdID:    ac.HouseholdID,
		Title:          req.Title,
		Description:    req.Description,
		BasePoints:     req.BasePoints,
		Frequency:      freq,
		AssignedUserID: req.AssignedUserID,
	}
	if req.NextDueDate != nil {
		params.NextDueDate = req.NextDueDate.UTC()
	}

	c, err := chore.Create(params, ac.UserID, now)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	created, err := h.choreStore.Create(c)
	if err != nil {
		h.logger.Error("create chore", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create chore"})
		return
	}

	h.notify(ac.HouseholdID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	mode, err := chore.ParseFilterMode(r.URL.Query().Get("filter"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown filter mode"})
		return
	}
	showCompleted := r.URL.Query().Get("show_completed") == "true"

	chores, err := h.choreStore.ListByHousehold(ac.HouseholdID)
	if err != nil {
		h.logger.Error("list chores", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list chores"})
		return
	}

	filtered := chore.Filter(chores, mode, ac.UserID, showCompleted)
	chore.SortByDueDate(filtered)
	writeJSON(w, http.StatusOK, filtered)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	c := h.loadChore(w, r, ac.HouseholdID)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type updateChoreRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	BasePoints     int        `json:"base_points"`
	Frequency      string     `json:"frequency"`
	NextDueDate    *time.Time `json:"next_due_date"`
	AssignedUserID string     `json:"assigned_user_id"`
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	existing := h.loadChore(w, r, ac.HouseholdID)
	if existing == nil {
		return
	}

	var req updateChoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	freq, err := model.ParseFrequency(req.Frequency)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown frequency"})
		return
	}
	if req.AssignedUserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "assigned_user_id is required"})
		return
	}
	if !h.isMember(w, ac.HouseholdID, req.AssignedUserID) {
		return
	}

	updated := *existing
	updated.Title = strings.TrimSpace(req.Title)
	updated.Description = chore.NormalizeDescription(req.Description)
	if req.BasePoints > 0 {
		updated.BasePoints = req.BasePoints
	}
	updated.Frequency = freq
	if req.NextDueDate != nil {
		updated.NextDueDate = req.NextDueDate.UTC()
	}
	updated.AssignedUserID = req.AssignedUserID
	updated.LastUpdated = time.Now().UTC()

	saved, err := h.choreStore.Update(updated)
	if err != nil {
		h.logger.Error("update chore", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update chore"})
		return
	}

	h.notify(ac.HouseholdID)
	writeJSON(w, http.StatusOK, saved)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	existing := h.loadChore(w, r, ac.HouseholdID)
	if existing == nil {
		return
	}

	if err := h.choreStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete chore", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete chore"})
		return
	}

	h.notify(ac.HouseholdID)
	w.WriteHeader(http.StatusNoContent)
}

// Steal reassigns the chore to the caller for a one point discount. The
// same-assignee guard lives here, not in the policy.
func (h *ChoreHandler) Steal(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	existing := h.loadChore(w, r, ac.HouseholdID)
	if existing == nil {
		return
	}
	if existing.Completed() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "chore is already completed"})
		return
	}
	if existing.AssignedUserID == ac.UserID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chore is already yours"})
		return
	}

	stolen := chore.Steal(*existing, ac.UserID, time.Now().UTC())
	saved, err := h.choreStore.Update(stolen)
	if err != nil {
		h.logger.Error("steal chore", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to steal chore"})
		return
	}

	h.notify(ac.HouseholdID)
	writeJSON(w, http.StatusOK, saved)
}

type forceRequest struct {
	UserID string `json:"user_id"`
}

// Force hands the chore to another member and adds a point as compensation.
func (h *ChoreHandler) Force(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	existing := h.loadChore(w, r, ac.HouseholdID)
	if existing == nil {
		return
	}
	if existing.Completed() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "chore is already completed"})
		return
	}

	var req forceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	if !h.isMember(w, ac.HouseholdID, req.UserID) {
		return
	}

	forced := chore.Force(*existing, req.UserID, time.Now().UTC())
	saved, err := h.choreStore.Update(forced)
	if err != nil {
		h.logger.Error("force chore", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to force chore"})
		return
	}

	h.notify(ac.HouseholdID)
	writeJSON(w, http.StatusOK, saved)
}

type completionResponse struct {
	Completed model.Chore  `json:"completed"`
	Successor *model.Chore `json:"successor,omitempty"`
}

// Complete marks the chore done. Recurring chores also get their successor
// instance; both records are committed together.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	existing := h.loadChore(w, r, ac.HouseholdID)
	if existing == nil {
		return
	}
	if existing.Completed() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "chore is already completed"})
		return
	}

	completed, successor := chore.Complete(*existing, time.Now().UTC())
	if err := h.choreStore.SaveCompletion(completed, successor); err != nil {
		h.logger.Error("complete chore", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to complete chore"})
		return
	}

	h.notify(ac.HouseholdID)
	writeJSON(w, http.StatusOK, completionResponse{Completed: completed, Successor: successor})
}

// loadChore fetches the chore in the path and checks it belongs to the
// caller's household. Writes the error response and returns nil on failure.
func (h *ChoreHandler) loadChore(w http.ResponseWriter, r *http.Request, householdID string) *model.Chore {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil
	}

	c, err := h.choreStore.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get chore"})
		return nil
	}
	if c == nil || c.HouseholdID != householdID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return nil
	}
	return c
}

// isMember verifies userID belongs to the household, writing the error
// response on failure.
func (h *ChoreHandler) isMember(w http.ResponseWriter, householdID, userID string) bool {
	member, err := h.householdStore.GetMember(householdID, userID)
	if err != nil {
		h.logger.Error("check member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check member"})
		return false
	}
	if member == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user is not a household member"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
