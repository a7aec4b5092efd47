package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/choreward/choreward/internal/auth"
	"github.com/choreward/choreward/internal/invite"
	"github.com/choreward/choreward/internal/store"
)

type AuthHandler struct {
	userStore      *store.UserStore
	householdStore *store.HouseholdStore
	sessionStore   *store.SessionStore
	invites        *invite.Issuer
	logger         *slog.Logger
}

func NewAuthHandler(us *store.UserStore, hs *store.HouseholdStore, ss *store.SessionStore, invites *invite.Issuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:      us,
		householdStore: hs,
		sessionStore:   ss,
		invites:        invites,
		logger:         logger,
	}
}

type registerRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Password      string `json:"password"`
	HouseholdName string `json:"household_name"`
}

type sessionResponse struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	HouseholdID string    `json:"household_id"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Register creates a user plus a fresh household with the user as its admin,
// then opens a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "valid email is required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if strings.TrimSpace(req.HouseholdName) == "" {
		req.HouseholdName = req.Name + "'s household"
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}

	user, err := h.userStore.Create(req.Email, strings.TrimSpace(req.Name), string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}

	household, err := h.householdStore.Create(strings.TrimSpace(req.HouseholdName))
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}
	if _, err := h.householdStore.AddMember(household.ID, user.ID, "admin"); err != nil {
		h.logger.Error("add member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}

	h.openSession(w, user.ID, household.ID, "admin", http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	user, err := h.userStore.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	households, err := h.householdStore.ListHouseholdsForUser(user.ID)
	if err != nil {
		h.logger.Error("list households", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	if len(households) == 0 {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "no household membership"})
		return
	}

	// Sessions are scoped to one household; first membership wins.
	householdID := households[0].ID
	member, err := h.householdStore.GetMember(householdID, user.ID)
	if err != nil || member == nil {
		h.logger.Error("get member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}

	h.openSession(w, user.ID, householdID, member.Role, http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteResponse struct {
	Token string `json:"token"`
}

// Invite issues a signed invite token for the caller's household. Admin only;
// the route wrapping enforces that.
func (h *AuthHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}
	if req.Role != "member" && req.Role != "admin" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be member or admin"})
		return
	}

	token, err := h.invites.Issue(ac.HouseholdID, req.Email, req.Role, time.Now().UTC())
	if err != nil {
		h.logger.Error("issue invite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue invite"})
		return
	}

	writeJSON(w, http.StatusCreated, inviteResponse{Token: token})
}

type inviteAcceptRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// InviteAccept redeems an invite token. New invitees get an account created
// from the request body; existing users just gain the membership.
func (h *AuthHandler) InviteAccept(w http.ResponseWriter, r *http.Request) {
	var req inviteAcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	claims, err := h.invites.Verify(req.Token)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, invite.ErrExpiredToken) {
			status = http.StatusGone
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	user, err := h.userStore.GetByEmail(claims.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to accept invite"})
		return
	}
	if user == nil {
		if len(req.Password) < 8 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = claims.Email
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("hash password", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to accept invite"})
			return
		}
		user, err = h.userStore.Create(claims.Email, name, string(hash))
		if err != nil {
			h.logger.Error("create user", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to accept invite"})
			return
		}
	}

	member, err := h.householdStore.GetMember(claims.HouseholdID, user.ID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to accept invite"})
		return
	}
	if member == nil {
		member, err = h.householdStore.AddMember(claims.HouseholdID, user.ID, claims.Role)
		if err != nil {
			h.logger.Error("add member", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to accept invite"})
			return
		}
	}

	h.openSession(w, user.ID, claims.HouseholdID, member.Role, http.StatusOK)
}

func (h *AuthHandler) openSession(w http.ResponseWriter, userID, householdID, role string, status int) {
	sess, err := h.sessionStore.Create(userID, householdID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	writeJSON(w, status, sessionResponse{
		Token:       sess.Token,
		UserID:      userID,
		HouseholdID: householdID,
		Role:        role,
		ExpiresAt:   sess.ExpiresAt,
	})
}
