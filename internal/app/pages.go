package app

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/molpadia/molpastudio/internal/dashboard"
	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type cardView struct {
	Video       *entity.Video
	Visible     string
	Thumbnail   string
	Preview     string
	Download    string
	Duration    string
	Uploaded    string
	Original    string
	Compressed  string
	Compression string
}

type homeView struct {
	SignedIn bool
	Error    string
	Cards    []cardView
}

type formView struct {
	Title  string
	Action string
	Other  string
}

func (c *controller) landing(w http.ResponseWriter, r *http.Request) error {
	return render(w, "landing.html", nil)
}

// Render the dashboard with every card idle.
func (c *controller) home(w http.ResponseWriter, r *http.Request) error {
	view := homeView{SignedIn: UserId(r) != ""}
	if !view.SignedIn {
		view.Error = "Failed to fetch videos"
		return render(w, "home.html", view)
	}
	videos, err := c.videos.List(r.Context())
	if err != nil {
		logging.Error("failed to list videos: %v", err)
		view.Error = "Failed to fetch videos"
		return render(w, "home.html", view)
	}
	now := c.now()
	for _, v := range videos {
		card := dashboard.NewCard(v.Id, v.PublicId)
		view.Cards = append(view.Cards, cardView{
			Video:       v,
			Visible:     card.Visible().String(),
			Thumbnail:   c.resolver.Thumbnail(v.PublicId),
			Preview:     c.resolver.PreviewClip(v.PublicId),
			Download:    c.resolver.FullAsset(v.PublicId),
			Duration:    dashboard.FormatDuration(v.Duration),
			Uploaded:    dashboard.FormatUploaded(v.CreatedAt, now),
			Original:    dashboard.FormatSize(v.OriginalSize),
			Compressed:  dashboard.FormatSize(v.CompressedSize),
			Compression: dashboard.FormatCompression(v),
		})
	}
	return render(w, "home.html", view)
}

func (c *controller) signInPage(w http.ResponseWriter, r *http.Request) error {
	return render(w, "form.html", formView{Title: "Sign in", Action: "/sign-in", Other: "/sign-up"})
}

func (c *controller) signUpPage(w http.ResponseWriter, r *http.Request) error {
	return render(w, "form.html", formView{Title: "Sign up", Action: "/sign-up", Other: "/sign-in"})
}

func render(w http.ResponseWriter, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("cannot render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
