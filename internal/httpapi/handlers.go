package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/internal/apierror"
	"github.com/babymilooo/webster-backend/middleware"
	"github.com/babymilooo/webster-backend/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Service is the engine surface used by the handlers. *webster.Engine
// implements it.
type Service interface {
	middleware.Authenticator
	middleware.AccessRotator

	Login(ctx context.Context, email, password string) (webster.Identity, session.Pair, error)
	Register(ctx context.Context, req webster.RegisterRequest) (webster.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (webster.Identity, session.Pair, error)
	Logout(ctx context.Context, refreshToken string) error

	RequestEmailVerification(ctx context.Context, email string) error
	SendVerificationEmail(ctx context.Context, userID string) error
	ConfirmEmailVerification(ctx context.Context, token string) (webster.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error

	UserInfo(ctx context.Context, userID string) (webster.Identity, error)
	PublicProfile(ctx context.Context, userID string) (webster.PublicProfile, error)
	ChangePassword(ctx context.Context, userID, current, next, refreshToken string) error
	UpdateProfile(ctx context.Context, userID string, upd webster.ProfileUpdate) (webster.Identity, error)
	DeleteAccount(ctx context.Context, userID, refreshToken string) error
}

var _ Service = (*webster.Engine)(nil)

// Handlers serves the /auth and /user routes.
type Handlers struct {
	svc         Service
	cookies     session.Cookies
	frontendURL string
	validate    *validator.Validate
}

func NewHandlers(svc Service, cookies session.Cookies, frontendURL string) *Handlers {
	return &Handlers{
		svc:         svc,
		cookies:     cookies,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		validate:    newValidator(),
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// principal returns the guard principal and the current cookie pair. The
// routes using it are always behind AccessGuard.
func principal(r *http.Request) (webster.Principal, session.Pair, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return webster.Principal{}, session.Pair{}, errors.New("handler mounted without access guard")
	}
	pair, _ := middleware.CredentialsFromContext(r.Context())
	return p, pair, nil
}

/*
====================================
AUTH
====================================
*/

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := h.decodeAndValidate(w, r, &in); err != nil {
		apierror.WriteError(w, r, err)
		return
	}

	identity, pair, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}

	h.cookies.Write(w, pair)
	writeJSON(w, http.StatusOK, userFromIdentity(identity))
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := h.decodeAndValidate(w, r, &in); err != nil {
		apierror.WriteError(w, r, err)
		return
	}

	identity, err := h.svc.Register(r.Context(), webster.RegisterRequest{
		Email:    in.Email,
		Password: in.Password,
		UserName: in.UserName,
	})
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userFromIdentity(identity))
}

// Logout clears the cookies even when revocation fails, then reports the
// failure.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	_, pair, err := principal(r)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}

	h.cookies.Clear(w)
	if err := h.svc.Logout(r.Context(), pair.RefreshToken); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	creds := session.ExtractCredentials(r, session.RequireRefresh)
	if creds == nil {
		apierror.WriteError(w, r, webster.ErrUnauthorized)
		return
	}

	identity, pair, err := h.svc.Refresh(r.Context(), creds.RefreshToken)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}

	h.cookies.Write(w, pair)
	writeJSON(w, http.StatusOK, userFromIdentity(identity))
}

func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	creds := session.ExtractCredentials(r, session.RequireBoth)
	if creds == nil {
		apierror.WriteError(w, r, webster.ErrUnauthorized)
		return
	}
	if _, err := h.svc.Authenticate(r.Context(), creds.AccessToken); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func (h *Handlers) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := h.decodeAndValidate(w, r, &in); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	if err := h.svc.RequestEmailVerification(r.Context(), in.Email); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "if the account exists, a verification email has been sent")
}

// VerifyEmail confirms the address and sends the browser back to the
// frontend.
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.ConfirmEmailVerification(r.Context(), chi.URLParam(r, "token")); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	http.Redirect(w, r, h.frontendURL+"/verify-email", http.StatusFound)
}

func (h *Handlers) SendPasswordResetEmail(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := h.decodeAndValidate(w, r, &in); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), in.Email); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "if the account exists, a password reset email has been sent")
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordRequest
	if err := h.decodeAndValidate(w, r, &in); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), chi.URLParam(r, "token"), in.Password); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password successfully reset")
}

/*
====================================
USER
====================================
*/

func (h *Handlers) UserInfo(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	identity, err := h.svc.UserInfo(r.Context(), p.UserID)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userFromIdentity(identity))
}

func (h *Handlers) PublicUserInfo(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.PublicProfile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handlers) SendOwnVerificationEmail(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	if err := h.svc.SendVerificationEmail(r.Context(), p.UserID); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "verification email successfully sent")
}

// EditPassword ends the session on success; the client logs in again with
// the new password.
func (h *Handlers) EditPassword(w http.ResponseWriter, r *http.Request) {
	p, pair, err := principal(r)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	var in changePasswordRequest
	if err := h.decodeAndValidate(w, r, &in); err != nil {
		apierror.WriteError(w, r, err)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), p.UserID, in.CurrentPassword, in.NewPassword, pair.RefreshToken); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	h.cookies.Clear(w)
	writeMessage(w, http.StatusOK, "password successfully changed")
}

func (h *Handlers) EditProfile(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	var in editProfileRequest
	if err := h.decodeAndValidate(w, r, &in); err != nil {
		apierror.WriteError(w, r, err)
		return
	}

	identity, err := h.svc.UpdateProfile(r.Context(), p.UserID, webster.ProfileUpdate{
		UserName: in.UserName,
		Email:    in.Email,
	})
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userFromIdentity(identity))
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, pair, err := principal(r)
	if err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), p.UserID, pair.RefreshToken); err != nil {
		apierror.WriteError(w, r, err)
		return
	}
	h.cookies.Clear(w)
	writeMessage(w, http.StatusOK, "account deleted")
}
