package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/api/helpers"
	"github.com/filmgate/auth-service/internal/api/middleware"
	"github.com/filmgate/auth-service/internal/auth"
	"github.com/filmgate/auth-service/internal/storage"
)

// SocialAccountLister reads a user's linked federated identities.
type SocialAccountLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]storage.SocialAccount, error)
}

// AuthHandlers serves the /auth route group.
type AuthHandlers struct {
	service *auth.Service
	mfa     *auth.MFAService
	social  SocialAccountLister
}

func NewAuthHandlers(service *auth.Service, mfa *auth.MFAService, social SocialAccountLister) *AuthHandlers {
	return &AuthHandlers{service: service, mfa: mfa, social: social}
}

type registerRequest struct {
	Login    string  `json:"login"`
	Password string  `json:"password"`
	Email    *string `json:"email,omitempty"`
}

func (req *registerRequest) validate() map[string]string {
	fields := make(map[string]string)
	if l := len(req.Login); l < 1 || l > 50 {
		fields["login"] = "Login must be between 1 and 50 characters."
	}
	if l := len(req.Password); l < 6 || l > 128 {
		fields["password"] = "Password must be between 6 and 128 characters."
	}
	if req.Email != nil {
		if len(*req.Email) > 100 || !strings.Contains(*req.Email, "@") {
			fields["email"] = "Email must be a valid address of at most 100 characters."
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if fields := req.validate(); fields != nil {
		helpers.RespondFieldErrors(w, http.StatusUnprocessableEntity, fields)
		return
	}

	_, conflicts, err := h.service.Register(r.Context(), auth.RegisterInput{
		Login:    req.Login,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if conflicts != nil {
		helpers.RespondFieldErrors(w, http.StatusConflict, conflicts)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if req.Login == "" || req.Password == "" {
		helpers.RespondFieldErrors(w, http.StatusUnprocessableEntity, map[string]string{
			"authentication": "Login and password are required.",
		})
		return
	}

	pair, err := h.service.Login(r.Context(), auth.LoginInput{
		Login:     req.Login,
		Password:  req.Password,
		IPAddress: helpers.GetRealIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			helpers.RespondFieldErrors(w, http.StatusUnauthorized, map[string]string{
				"authentication": "Incorrect login or password",
			})
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	helpers.RespondJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			helpers.RespondError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	helpers.RespondJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			helpers.RespondError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// LogoutAllOther handles POST /auth/logout_all_other_sessions.
func (h *AuthHandlers) LogoutAllOther(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	if err := h.service.LogoutAllOtherSessions(r.Context(), principal.ID, req.RefreshToken); err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			helpers.RespondError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "All other sessions revoked"})
}

type historyEntryView struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	LoginAt   time.Time `json:"login_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

// History handles GET /auth/history.
func (h *AuthHandlers) History(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	limit, err := queryInt(r, "limit", 100)
	if err != nil || limit < 1 || limit > 1000 {
		helpers.RespondFieldErrors(w, http.StatusUnprocessableEntity, map[string]string{
			"limit": "limit must be an integer between 1 and 1000",
		})
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		helpers.RespondFieldErrors(w, http.StatusUnprocessableEntity, map[string]string{
			"offset": "offset must be a non-negative integer",
		})
		return
	}

	entries, err := h.service.GetLoginHistory(r.Context(), principal.ID, limit, offset)
	if err != nil {
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	views := make([]historyEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, historyEntryView{
			ID:        e.ID,
			UserID:    e.UserID,
			LoginAt:   e.LoginAt,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
		})
	}
	helpers.RespondJSON(w, http.StatusOK, views)
}

type updateProfileRequest struct {
	Login    *string `json:"login,omitempty"`
	Password *string `json:"password,omitempty"`
	Email    *string `json:"email,omitempty"`
}

type userView struct {
	ID          uuid.UUID  `json:"id"`
	Login       string     `json:"login"`
	Email       *string    `json:"email,omitempty"`
	IsSuperuser bool       `json:"is_superuser"`
	MFAEnabled  bool       `json:"mfa_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func newUserView(u *storage.User) userView {
	return userView{
		ID:          u.ID,
		Login:       u.Login,
		Email:       u.Email,
		IsSuperuser: u.IsSuperuser,
		MFAEnabled:  u.MFAEnabled,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// UpdateProfile handles PATCH /auth/profile.
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req updateProfileRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if fields := validateProfileUpdate(&req); fields != nil {
		helpers.RespondFieldErrors(w, http.StatusUnprocessableEntity, fields)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), principal.ID, auth.UpdateProfileInput{
		Login:    req.Login,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrLoginTaken):
			helpers.RespondFieldErrors(w, http.StatusConflict, map[string]string{
				"login": "Login is already taken.",
			})
		case errors.Is(err, auth.ErrUserNotFound):
			helpers.RespondError(w, http.StatusNotFound, "User not found")
		default:
			helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	helpers.RespondJSON(w, http.StatusOK, newUserView(user))
}

func validateProfileUpdate(req *updateProfileRequest) map[string]string {
	fields := make(map[string]string)
	if req.Login != nil {
		if l := len(*req.Login); l < 1 || l > 50 {
			fields["login"] = "Login must be between 1 and 50 characters."
		}
	}
	if req.Password != nil {
		if l := len(*req.Password); l < 6 || l > 128 {
			fields["password"] = "Password must be between 6 and 128 characters."
		}
	}
	if req.Email != nil {
		if len(*req.Email) > 100 || !strings.Contains(*req.Email, "@") {
			fields["email"] = "Email must be a valid address of at most 100 characters."
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// MFASetup handles POST /auth/mfa/setup.
func (h *AuthHandlers) MFASetup(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	setup, err := h.mfa.Setup(r.Context(), principal.ID)
	if err != nil {
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	helpers.RespondJSON(w, http.StatusOK, setup)
}

type mfaVerifyRequest struct {
	Code string `json:"code"`
}

// MFAVerify handles POST /auth/mfa/verify.
func (h *AuthHandlers) MFAVerify(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req mfaVerifyRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Code == "" {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	token, err := h.mfa.Verify(r.Context(), principal.ID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMFANotEnrolled):
			helpers.RespondError(w, http.StatusBadRequest, "MFA is not set up for this account")
		case errors.Is(err, auth.ErrInvalidMFACode):
			helpers.RespondError(w, http.StatusBadRequest, "Invalid MFA code")
		default:
			helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]string{
		"access_token": token.Token,
		"token_type":   "bearer",
	})
}

type socialAccountView struct {
	ID       uuid.UUID `json:"id"`
	Provider string    `json:"provider"`
	LinkedAt time.Time `json:"linked_at"`
}

// SocialAccounts handles GET /auth/social_accounts. Linking happens out of
// band; this only lists what is already attached to the account.
func (h *AuthHandlers) SocialAccounts(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	accounts, err := h.social.ListByUser(r.Context(), principal.ID)
	if err != nil {
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	views := make([]socialAccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, socialAccountView{
			ID:       a.ID,
			Provider: a.Provider,
			LinkedAt: a.CreatedAt,
		})
	}
	helpers.RespondJSON(w, http.StatusOK, views)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
