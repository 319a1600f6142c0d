package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/molpadia/molpastudio/internal/auth"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/mediaurl"
	"github.com/molpadia/molpastudio/internal/middleware"
)

// MaxRequestSize bounds JSON request bodies.
const MaxRequestSize = 1 << 20

type appHandler func(http.ResponseWriter, *http.Request) error

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		var e *AppError
		if errors.As(err, &e) {
			if e.Code >= http.StatusInternalServerError {
				logging.Error("%s %s: %v", r.Method, r.URL.Path, err)
			} else {
				logging.Debug("%s %s: %v", r.Method, r.URL.Path, err)
			}
			replyJSON(w, e, e.Code)
			return
		}
		logging.Error("%s %s: %v", r.Method, r.URL.Path, err)
		replyJSON(w, ErrorResponse{"Internal server error"}, http.StatusInternalServerError)
	}
}

// Options carries the collaborators of the HTTP API.
type Options struct {
	Videos   repository.VideoRepository
	Users    repository.UserRepository
	Media    repository.MediaStore
	Sessions *auth.Sessions
	Resolver *mediaurl.Resolver
	// MediaHandler serves /media/ delivery URLs.
	MediaHandler  http.Handler
	MaxUploadSize int64
	SecureCookies bool
	Logging       middleware.LoggingConfig
	// Ping reports whether the metadata store is reachable, if set.
	Ping func(context.Context) error
}

// NewRouter builds the router with the access log, metrics and session gate.
func NewRouter(o Options) *mux.Router {
	c := &controller{
		videos:        o.Videos,
		users:         o.Users,
		media:         o.Media,
		sessions:      o.Sessions,
		resolver:      o.Resolver,
		maxUploadSize: o.MaxUploadSize,
		secureCookies: o.SecureCookies,
		now:           time.Now,
	}
	r := mux.NewRouter()
	r.Use(middleware.Logger(o.Logging))
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	r.Use(NewGate(o.Sessions).Middleware)
	SetupRoutes(r, c)
	r.Methods("GET").Path("/health").HandlerFunc(health(o.Ping))
	if o.MediaHandler != nil {
		r.Methods("GET", "HEAD").PathPrefix("/media/").Handler(o.MediaHandler)
	}
	return r
}

// Register API endpoints to the router.
func SetupRoutes(r *mux.Router, c *controller) {
	r.Methods("GET").Path("/").Handler(appHandler(c.landing))
	r.Methods("GET").Path("/home").Handler(appHandler(c.home))
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	r.Methods("GET").Path("/sign-in").Handler(appHandler(c.signInPage))
	r.Methods("GET").Path("/sign-up").Handler(appHandler(c.signUpPage))
	r.Methods("POST").Path("/sign-in").Handler(appHandler(c.signIn))
	r.Methods("POST").Path("/sign-up").Handler(appHandler(c.signUp))
	r.Methods("POST").Path("/sign-out").Handler(appHandler(c.signOut))

	r.Methods("GET").Path("/api/videos").Handler(appHandler(c.listVideos))
	r.Methods("DELETE").Path("/api/video-delete").Handler(appHandler(c.deleteVideo))
	r.Methods("POST").Path("/api/video-upload").Handler(appHandler(c.uploadVideo))
	r.Methods("POST").Path("/api/image-upload").Handler(appHandler(c.uploadImage))
}

func health(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logging.Warn("health check failed: %v", err)
				replyJSON(w, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
				return
			}
		}
		replyJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

// Parse incoming request body as JSON object.
func parseJSON(w http.ResponseWriter, r *http.Request, data interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
	return json.NewDecoder(r.Body).Decode(data)
}

// Reply the output with JSON format.
func replyJSON(w http.ResponseWriter, data interface{}, code int) error {
	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(out)
	return err
}
