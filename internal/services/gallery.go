package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/gallery"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

const galleryDir = "gallery"

// GalleryImageTypes are the accepted upload types.
var GalleryImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var ErrGalleryItemNotFound = newError(ErrNotFound, "gallery item not found")

type GalleryService struct {
	deps Deps
	repo *gallery.Repository
}

func NewGalleryService(deps Deps) *GalleryService {
	return &GalleryService{deps: deps, repo: gallery.NewRepository(deps.DB)}
}

func (s *GalleryService) List(limit, offset int) ([]entities.GalleryItem, int64, error) {
	return s.repo.List(limit, offset)
}

func (s *GalleryService) Get(id uint) (*entities.GalleryItem, error) {
	item, err := s.repo.GetByID(id)
	if errors.Is(err, gallery.ErrNotFound) {
		return nil, ErrGalleryItemNotFound
	}
	return item, err
}

// Upload stores an image and creates its gallery entry.
func (s *GalleryService) Upload(ctx context.Context, actorID uint, title, caption string, content io.Reader) (*entities.GalleryItem, error) {
	if s.deps.Storage == nil {
		return nil, ErrStorageDisabled
	}
	title, caption = strings.TrimSpace(title), strings.TrimSpace(caption)
	if title == "" {
		return nil, validation.Field("title", "is required")
	}
	if len(title) > 200 {
		return nil, validation.Field("title", "must be at most 200 characters")
	}
	if len(caption) > 1000 {
		return nil, validation.Field("caption", "must be at most 1000 characters")
	}

	info, err := s.deps.Storage.Save(ctx, galleryDir, content, s.deps.MaxUpload, GalleryImageTypes...)
	if err != nil {
		return nil, uploadError(err)
	}

	item := &entities.GalleryItem{
		Title:        title,
		Caption:      caption,
		FilePath:     info.Path,
		ContentType:  info.ContentType,
		FileSize:     info.Size,
		UploadedByID: actorID,
	}
	if err := s.repo.Create(item); err != nil {
		_ = s.deps.Storage.Delete(ctx, info.Path)
		return nil, fmt.Errorf("failed to create gallery item: %w", err)
	}

	s.deps.audit(audit.Entry{
		ActorID:     actorID,
		EventType:   entities.AuditEventGallery,
		Action:      "upload",
		Description: fmt.Sprintf("Uploaded %q (%s)", item.Title, info.HumanSize()),
		EntityType:  "gallery_item",
		EntityID:    item.ID,
	})
	return item, nil
}

func (s *GalleryService) OpenFile(ctx context.Context, id uint) (storage.ReadSeekCloser, *storage.FileInfo, *entities.GalleryItem, error) {
	if s.deps.Storage == nil {
		return nil, nil, nil, ErrStorageDisabled
	}
	item, err := s.Get(id)
	if err != nil {
		return nil, nil, nil, err
	}
	f, info, err := s.deps.Storage.Open(ctx, item.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil, ErrGalleryItemNotFound
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return f, info, item, nil
}

// Delete removes the entry and its file.
func (s *GalleryService) Delete(ctx context.Context, actorID, id uint) error {
	item, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, gallery.ErrNotFound) {
			return ErrGalleryItemNotFound
		}
		return err
	}
	if s.deps.Storage != nil {
		if err := s.deps.Storage.Delete(ctx, item.FilePath); err != nil {
			log.Warn().Err(err).Uint("gallery_item_id", id).Msg("Failed to remove gallery file")
		}
	}
	s.deps.audit(audit.Entry{
		ActorID:     actorID,
		EventType:   entities.AuditEventGallery,
		Action:      "delete",
		Description: fmt.Sprintf("Deleted %q", item.Title),
		EntityType:  "gallery_item",
		EntityID:    item.ID,
	})
	return nil
}
