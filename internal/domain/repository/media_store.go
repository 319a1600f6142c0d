package repository

import (
	"context"
	"io"

	"github.com/molpadia/molpastudio/internal/domain/entity"
)

type MediaStore interface {
	// Upload a file to the media service and return the stored asset.
	Upload(ctx context.Context, folder, kind, filename string, body io.Reader) (*entity.Asset, error)
	// Destroy the asset identified by the media reference.
	Destroy(ctx context.Context, publicId, kind string) error
}
