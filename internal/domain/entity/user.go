package entity

import "time"

// The account that owns a session.
type User struct {
	Id           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// The result of storing a file with the media service.
type Asset struct {
	PublicId string
	Kind     string
	Bytes    int64   // Size of the stored (compressed) asset.
	Duration float64 // Seconds, negative if unknown.
	URL      string
}
