// Package mediaurl derives delivery URLs for assets held by the media service.
//
// URLs follow the media service's transformation syntax:
//
//	<base>/<resource>/upload/<transformation>/.../<media reference>
//
// Derivation is a pure string mapping. Nothing here checks that the asset exists;
// an unknown reference yields a URL that fails downstream.
package mediaurl

import (
	"net/url"
	"strings"
)

type Intent int

const (
	IntentThumbnail Intent = iota
	IntentPreviewClip
	IntentFullAsset
)

func (i Intent) String() string {
	switch i {
	case IntentThumbnail:
		return "thumbnail"
	case IntentPreviewClip:
		return "preview"
	case IntentFullAsset:
		return "full"
	default:
		return "unknown"
	}
}

// Transformation chains per intent. Each element is one path segment.
var transformations = map[Intent][]string{
	IntentThumbnail:   {"c_fill,g_auto,h_225,w_400", "f_jpg", "q_auto"},
	IntentPreviewClip: {"c_fill,h_225,w_400", "e_preview:duration_15:max_seg_9:min_seg_dur_1", "f_mp4", "q_auto"},
	IntentFullAsset:   {"c_limit,h_1080,w_1920"},
}

type Resolver struct {
	base string
}

// NewResolver returns a resolver for the delivery base URL, for example
// "https://res.cloudinary.com/demo" or "http://localhost:4443/media".
func NewResolver(base string) *Resolver {
	return &Resolver{base: strings.TrimRight(base, "/")}
}

// Thumbnail is a 400x225 still frame, auto-cropped on the subject.
func (r *Resolver) Thumbnail(ref string) string { return r.Resolve(ref, IntentThumbnail) }

// PreviewClip is a short 400x225 looping clip for hover previews.
func (r *Resolver) PreviewClip(ref string) string { return r.Resolve(ref, IntentPreviewClip) }

// FullAsset is the 1920x1080 rendition offered for download.
func (r *Resolver) FullAsset(ref string) string { return r.Resolve(ref, IntentFullAsset) }

func (r *Resolver) Resolve(ref string, intent Intent) string {
	var b strings.Builder
	b.WriteString(r.base)
	b.WriteString("/video/upload")
	for _, t := range transformations[intent] {
		b.WriteByte('/')
		b.WriteString(t)
	}
	b.WriteByte('/')
	b.WriteString(escapeRef(ref))
	return b.String()
}

// Escape each segment of a reference while keeping folder separators.
func escapeRef(ref string) string {
	parts := strings.Split(strings.TrimLeft(ref, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Reference extracts the media reference from a URL produced by Resolve.
// The second result is false when the path has no upload segment.
func Reference(path string) (string, bool) {
	ref, _, ok := Parse(path)
	return ref, ok
}

// Parse extracts the media reference and the intent from a URL path produced
// by Resolve.
func Parse(path string) (string, Intent, bool) {
	const marker = "/upload/"
	i := strings.Index(path, marker)
	if i < 0 {
		return "", 0, false
	}
	intent := IntentFullAsset
	segs := strings.Split(path[i+len(marker):], "/")
	// Skip leading transformation segments.
	for len(segs) > 1 && isTransformation(segs[0]) {
		switch {
		case segs[0] == "f_jpg":
			intent = IntentThumbnail
		case strings.HasPrefix(segs[0], "e_preview"):
			intent = IntentPreviewClip
		}
		segs = segs[1:]
	}
	ref, err := url.PathUnescape(strings.Join(segs, "/"))
	if err != nil || ref == "" {
		return "", 0, false
	}
	return ref, intent, true
}

func isTransformation(seg string) bool {
	if len(seg) < 3 || seg[1] != '_' {
		return false
	}
	switch seg[0] {
	case 'c', 'e', 'f', 'q', 'w', 'h', 'g':
		return true
	}
	return false
}
