package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/choreward/choreward/internal/auth"
	"github.com/choreward/choreward/internal/database"
	"github.com/choreward/choreward/internal/store"
)

func setupAuthTest(t *testing.T) (http.Handler, string, string, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	households := store.NewHouseholdStore(db)
	sessions := store.NewSessionStore(db)

	h, err := households.Create("Test")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	u, err := users.Create("a@example.com", "A", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := households.AddMember(h.ID, u.ID, "admin"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	sess, err := sessions.Create(u.ID, h.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Error("expected auth context in protected handler")
		}
		w.Write([]byte(ac.UserID))
	})

	return RequireAuth(sessions, households)(inner), sess.Token, u.ID, h.ID
}

func TestRequireAuthBearerToken(t *testing.T) {
	handler, token, userID, _ := setupAuthTest(t)

	req := httptest.NewRequest("GET", "/api/chores", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != userID {
		t.Errorf("body = %q, want user id", rec.Body.String())
	}
}

func TestRequireAuthCookie(t *testing.T) {
	handler, token, _, _ := setupAuthTest(t)

	req := httptest.NewRequest("GET", "/api/chores", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	handler, _, _, _ := setupAuthTest(t)

	req := httptest.NewRequest("GET", "/api/chores", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthRejectsBogusToken(t *testing.T) {
	handler, _, _, _ := setupAuthTest(t)

	req := httptest.NewRequest("GET", "/api/chores", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAdmin(inner)

	req := httptest.NewRequest("POST", "/api/invite", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: "u", Role: "member"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/invite", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: "u", Role: "admin"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("admin status = %d, want 204", rec.Code)
	}
}
