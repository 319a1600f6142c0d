package app

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/molpadia/molpastudio/internal/auth"
)

type contextKey int

const userIdKey contextKey = iota

// Pages anyone may open. Signed-in users are sent from all but /home to /home.
var publicRoutes = map[string]bool{
	"/sign-in": true,
	"/sign-up": true,
	"/":        true,
	"/home":    true,
}

// Endpoints outside the gate.
var ungatedRoutes = map[string]bool{"/health": true, "/metrics": true, "/media": true}

// Gate resolves the session of each request and redirects between the public
// pages and the rest of the site.
type Gate struct {
	sessions *auth.Sessions
}

func NewGate(sessions *auth.Sessions) *Gate {
	return &Gate{sessions: sessions}
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := routePath(r.URL.Path)
		userId := g.userId(r)
		if userId != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIdKey, userId))
		}
		if !gated(p) {
			next.ServeHTTP(w, r)
			return
		}
		public := publicRoutes[p]
		if userId != "" && public && p != "/home" {
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		if userId == "" && !public {
			http.Redirect(w, r, "/sign-in", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) userId(r *http.Request) string {
	token := auth.TokenFromRequest(r)
	if token == "" || g.sessions == nil {
		return ""
	}
	id, err := g.sessions.Verify(token)
	if err != nil {
		return ""
	}
	return id
}

// Get the signed-in user ID of the request, empty for anonymous requests.
func UserId(r *http.Request) string {
	id, _ := r.Context().Value(userIdKey).(string)
	return id
}

func routePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

// API routes are always gated. Other paths are gated unless they name a file
// or belong to the infrastructure endpoints.
func gated(p string) bool {
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		return true
	}
	if ungatedRoutes[p] || strings.HasPrefix(p, "/media/") {
		return false
	}
	return !strings.Contains(path.Base(p), ".")
}
