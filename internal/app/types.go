package app

import (
	"time"

	"github.com/molpadia/molpastudio/internal/domain/entity"
)

type DeleteVideoRequest struct {
	Id string `json:"id"`
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *entity.User `json:"user"`
}

type ImageResponse struct {
	PublicId string `json:"publicId"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
