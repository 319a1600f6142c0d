package repository

import (
	"context"
	"errors"

	"github.com/molpadia/molpastudio/internal/domain/entity"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type VideoRepository interface {
	// List all videos, newest first.
	List(ctx context.Context) ([]*entity.Video, error)
	// Get the video by the video ID. Returns nil without error when absent.
	GetById(ctx context.Context, id string) (*entity.Video, error)
	// Save an entity to the persistence.
	Save(ctx context.Context, video *entity.Video) error
	// Delete the video by the video ID. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
	// Record the size of the compressed asset for the given media reference.
	UpdateCompressedSize(ctx context.Context, publicId string, size int64) error
}

type UserRepository interface {
	// Get the user by email. Returns nil without error when absent.
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// Save a new user. Returns ErrDuplicate if the email is taken.
	Save(ctx context.Context, user *entity.User) error
}
