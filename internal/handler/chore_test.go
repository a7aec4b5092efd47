package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/choreward/choreward/internal/auth"
	"github.com/choreward/choreward/internal/database"
	"github.com/choreward/choreward/internal/model"
	"github.com/choreward/choreward/internal/store"
	"github.com/choreward/choreward/internal/stream"
)

type choreFixture struct {
	handler    *ChoreHandler
	chores     *store.ChoreStore
	households *store.HouseholdStore
	household  *model.Household
	alice      *model.User
	bob        *model.User
}

func setupChoreHandler(t *testing.T) *choreFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	households := store.NewHouseholdStore(db)
	chores := store.NewChoreStore(db)

	hh, err := households.Create("Baggins")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	alice, err := users.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := users.Create("bob@example.com", "Bob", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	if _, err := households.AddMember(hh.ID, alice.ID, "admin"); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if _, err := households.AddMember(hh.ID, bob.ID, "member"); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	h := NewChoreHandler(chores, households, stream.NewBroker(), logger)

	return &choreFixture{
		handler:    h,
		chores:     chores,
		households: households,
		household:  hh,
		alice:      alice,
		bob:        bob,
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func (f *choreFixture) authedRequest(method, target, body, userID string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ac := auth.AuthContext{UserID: userID, HouseholdID: f.household.ID, Role: "member"}
	return r.WithContext(auth.WithAuth(r.Context(), ac))
}

func (f *choreFixture) createChore(t *testing.T, body string) model.Chore {
	t.Helper()
	req := f.authedRequest("POST", "/api/chores", body, f.alice.ID)
	rec := httptest.NewRecorder()
	f.handler.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var c model.Chore
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatalf("decode chore: %v", err)
	}
	return c
}

func TestCreateChore(t *testing.T) {
	f := setupChoreHandler(t)

	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`","frequency":"daily"}`)

	if c.Title != "Dishes" {
		t.Errorf("title = %q", c.Title)
	}
	if c.BasePoints != 10 {
		t.Errorf("base points = %d, want default 10", c.BasePoints)
	}
	if c.Description != model.DescriptionNone {
		t.Errorf("description = %q, want sentinel", c.Description)
	}
	if c.CreationUserID != f.alice.ID {
		t.Errorf("creation user = %q, want alice", c.CreationUserID)
	}
	if c.Frequency != model.FrequencyDaily {
		t.Errorf("frequency = %q", c.Frequency)
	}
}

func TestCreateChoreValidation(t *testing.T) {
	f := setupChoreHandler(t)
	for name, body := range map[string]string{
		"missing title":    `{"assigned_user_id":"` + f.bob.ID + `"}`,
		"missing assignee": `{"title":"Dishes"}`,
		"bad frequency":    `{"title":"Dishes","assigned_user_id":"` + f.bob.ID + `","frequency":"fortnightly"}`,
		"bad JSON":         `{`,
	} {
		req := f.authedRequest("POST", "/api/chores", body, f.alice.ID)
		rec := httptest.NewRecorder()
		f.handler.Create(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestCreateChoreRejectsNonMember(t *testing.T) {
	f := setupChoreHandler(t)

	req := f.authedRequest("POST", "/api/chores", `{"title":"Dishes","assigned_user_id":"stranger"}`, f.alice.ID)
	rec := httptest.NewRecorder()
	f.handler.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListChoresFiltered(t *testing.T) {
	f := setupChoreHandler(t)
	f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`"}`)
	f.createChore(t, `{"title":"Vacuum","assigned_user_id":"`+f.alice.ID+`"}`)

	req := f.authedRequest("GET", "/api/chores?filter=mine", "", f.bob.ID)
	rec := httptest.NewRecorder()
	f.handler.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []model.Chore
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Dishes" {
		t.Errorf("filter=mine for bob returned %+v", got)
	}
}

func TestListChoresBadFilter(t *testing.T) {
	f := setupChoreHandler(t)

	req := f.authedRequest("GET", "/api/chores?filter=nope", "", f.alice.ID)
	rec := httptest.NewRecorder()
	f.handler.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetChoreWrongHousehold(t *testing.T) {
	f := setupChoreHandler(t)
	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`"}`)

	other, err := f.households.Create("Other")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	req := f.authedRequest("GET", "/api/chores/"+c.ID, "", f.alice.ID)
	ac := auth.AuthContext{UserID: f.alice.ID, HouseholdID: other.ID}
	req = req.WithContext(auth.WithAuth(req.Context(), ac))
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	f.handler.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStealChore(t *testing.T) {
	f := setupChoreHandler(t)
	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`","base_points":5}`)

	req := f.authedRequest("POST", "/api/chores/"+c.ID+"/steal", "", f.alice.ID)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	f.handler.Steal(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got model.Chore
	json.NewDecoder(rec.Body).Decode(&got)
	if got.AssignedUserID != f.alice.ID {
		t.Errorf("assignee = %q, want alice", got.AssignedUserID)
	}
	if got.BasePoints != 4 {
		t.Errorf("base points = %d, want 4", got.BasePoints)
	}
}

func TestStealOwnChore(t *testing.T) {
	f := setupChoreHandler(t)
	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`"}`)

	req := f.authedRequest("POST", "/api/chores/"+c.ID+"/steal", "", f.bob.ID)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	f.handler.Steal(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestForceChore(t *testing.T) {
	f := setupChoreHandler(t)
	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.alice.ID+`","base_points":5}`)

	req := f.authedRequest("POST", "/api/chores/"+c.ID+"/force", `{"user_id":"`+f.bob.ID+`"}`, f.alice.ID)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	f.handler.Force(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got model.Chore
	json.NewDecoder(rec.Body).Decode(&got)
	if got.AssignedUserID != f.bob.ID {
		t.Errorf("assignee = %q, want bob", got.AssignedUserID)
	}
	if got.BasePoints != 6 {
		t.Errorf("base points = %d, want 6", got.BasePoints)
	}
}

func TestCompleteRecurringChore(t *testing.T) {
	f := setupChoreHandler(t)
	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`","frequency":"daily"}`)

	req := f.authedRequest("POST", "/api/chores/"+c.ID+"/complete", "", f.bob.ID)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	f.handler.Complete(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got completionResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Completed.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Completed.Status)
	}
	if got.Successor == nil {
		t.Fatal("expected a successor for a daily chore")
	}
	wantDue := got.Completed.LastUpdated.Add(24 * time.Hour)
	if !got.Successor.NextDueDate.Equal(wantDue) {
		t.Errorf("successor due = %v, want %v", got.Successor.NextDueDate, wantDue)
	}

	stored, err := f.chores.GetByID(got.Successor.ID)
	if err != nil || stored == nil {
		t.Fatalf("successor not persisted: %v", err)
	}
}

func TestCompleteTwiceConflicts(t *testing.T) {
	f := setupChoreHandler(t)
	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`"}`)

	for i, want := range []int{http.StatusOK, http.StatusConflict} {
		req := f.authedRequest("POST", "/api/chores/"+c.ID+"/complete", "", f.bob.ID)
		req.SetPathValue("id", c.ID)
		rec := httptest.NewRecorder()
		f.handler.Complete(rec, req)
		if rec.Code != want {
			t.Errorf("attempt %d: status = %d, want %d", i+1, rec.Code, want)
		}
	}
}

func TestDeleteChore(t *testing.T) {
	f := setupChoreHandler(t)
	c := f.createChore(t, `{"title":"Dishes","assigned_user_id":"`+f.bob.ID+`"}`)

	req := f.authedRequest("DELETE", "/api/chores/"+c.ID, "", f.alice.ID)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	f.handler.Delete(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	stored, err := f.chores.GetByID(c.ID)
	if err != nil {
		t.Fatalf("get deleted chore: %v", err)
	}
	if stored != nil {
		t.Error("chore still present after delete")
	}
}
