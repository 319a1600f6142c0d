package app

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/molpadia/molpastudio/internal/auth"
	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/metrics"
)

// Create an account and sign it in.
func (c *controller) signUp(w http.ResponseWriter, r *http.Request) error {
	creds, err := parseCredentials(w, r)
	if err != nil {
		return err
	}
	if _, err := mail.ParseAddress(creds.Email); err != nil {
		return &AppError{http.StatusBadRequest, "a valid email is required"}
	}
	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordLength) {
			return &AppError{http.StatusBadRequest, err.Error()}
		}
		return err
	}
	user := &entity.User{
		Id:           uuid.New().String(),
		Email:        creds.Email,
		PasswordHash: hash,
		CreatedAt:    c.now(),
	}
	if err := c.users.Save(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return &AppError{http.StatusConflict, "email is already registered"}
		}
		return err
	}
	logging.Info("user %s signed up", user.Id)
	return c.startSession(w, r, user)
}

// Verify the credentials and start a session.
func (c *controller) signIn(w http.ResponseWriter, r *http.Request) error {
	creds, err := parseCredentials(w, r)
	if err != nil {
		return err
	}
	user, err := c.users.GetByEmail(r.Context(), creds.Email)
	if err != nil {
		return err
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, creds.Password) != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return &AppError{http.StatusUnauthorized, auth.ErrInvalidPassword.Error()}
	}
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	return c.startSession(w, r, user)
}

func (c *controller) signOut(w http.ResponseWriter, r *http.Request) error {
	auth.ClearCookie(w, c.secureCookies)
	if isForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil
	}
	return replyJSON(w, MessageResponse{"Signed out"}, http.StatusOK)
}

// Issue the session cookie. Form posts are redirected to the dashboard; API
// clients get the token in the body.
func (c *controller) startSession(w http.ResponseWriter, r *http.Request, user *entity.User) error {
	token, expires, err := c.sessions.Issue(user.Id)
	if err != nil {
		return err
	}
	auth.SetCookie(w, token, expires, c.secureCookies)
	if isForm(r) {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return nil
	}
	return replyJSON(w, SessionResponse{Token: token, ExpiresAt: expires, User: user}, http.StatusOK)
}

// Read credentials from a JSON body or an HTML form.
func parseCredentials(w http.ResponseWriter, r *http.Request) (*CredentialsRequest, error) {
	var creds CredentialsRequest
	if isForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
		if err := r.ParseForm(); err != nil {
			return nil, &AppError{http.StatusBadRequest, "cannot parse form"}
		}
		creds.Email, creds.Password = r.PostFormValue("email"), r.PostFormValue("password")
	} else if err := parseJSON(w, r, &creds); err != nil {
		return nil, &AppError{http.StatusBadRequest, "cannot parse JSON from request body"}
	}
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if creds.Email == "" || creds.Password == "" {
		return nil, &AppError{http.StatusBadRequest, "email and password are required"}
	}
	return &creds, nil
}

func isForm(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
