package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/books"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/reservations"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

const booksDir = "books"

var (
	ErrBookNotFound     = newError(ErrNotFound, "book not found")
	ErrBookFileNotFound = newError(ErrNotFound, "book has no digital copy")
	ErrBookOnLoan       = newError(ErrConflict, "book has active reservations")
	ErrStorageDisabled  = errors.New("file storage is not configured")
)

// BookInput is the create/update form for a catalogue entry.
type BookInput struct {
	Title         string `json:"title" validate:"required,max=512"`
	Author        string `json:"author" validate:"required,max=256"`
	ISBN          string `json:"isbn" validate:"max=20"`
	Category      string `json:"category" validate:"max=100"`
	Description   string `json:"description" validate:"max=10000"`
	PublishedYear int    `json:"published_year" validate:"gte=0,lte=3000"`
	TotalCopies   int    `json:"total_copies" validate:"gte=0"`
	IsDigital     bool   `json:"is_digital"`
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.ReplaceAll(strings.TrimSpace(in.ISBN), "-", "")
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
}

// BookQuery filters the public catalogue.
type BookQuery = books.Filter

// CatalogService manages books and their digital copies.
type CatalogService struct {
	deps         Deps
	repo         *books.Repository
	reservations *reservations.Repository
	lookup       BookLookup
}

func NewCatalogService(deps Deps) *CatalogService {
	return &CatalogService{
		deps:         deps,
		repo:         books.NewRepository(deps.DB),
		reservations: reservations.NewRepository(deps.DB),
	}
}

func (s *CatalogService) List(q BookQuery, limit, offset int) ([]entities.Book, int64, error) {
	return s.repo.List(q, limit, offset)
}

func (s *CatalogService) Get(id uint) (*entities.Book, error) {
	book, err := s.repo.GetByID(id)
	if errors.Is(err, books.ErrNotFound) {
		return nil, ErrBookNotFound
	}
	return book, err
}

func (s *CatalogService) Categories() ([]string, error) {
	return s.repo.Categories()
}

func (s *CatalogService) Create(ctx context.Context, actorID uint, in BookInput) (*entities.Book, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	book := &entities.Book{
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		Category:        in.Category,
		Description:     in.Description,
		PublishedYear:   in.PublishedYear,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		IsDigital:       in.IsDigital,
	}
	if err := s.repo.Create(book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	s.record(actorID, "create", book, "Added "+book.Title)
	return book, nil
}

// Update replaces the editable fields. Changing TotalCopies moves
// AvailableCopies by the same amount; the total may not drop below the
// number of copies currently out.
func (s *CatalogService) Update(ctx context.Context, actorID, id uint, in BookInput) (*entities.Book, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	book, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	out := book.TotalCopies - book.AvailableCopies
	if in.TotalCopies < out {
		return nil, validation.Field("total_copies", fmt.Sprintf("must be at least %d (copies currently out)", out))
	}

	book.Title = in.Title
	book.Author = in.Author
	book.ISBN = in.ISBN
	book.Category = in.Category
	book.Description = in.Description
	book.PublishedYear = in.PublishedYear
	book.AvailableCopies = in.TotalCopies - out
	book.TotalCopies = in.TotalCopies
	book.IsDigital = in.IsDigital || book.HasFile()

	if err := s.repo.Save(book); err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	s.record(actorID, "update", book, "Updated "+book.Title)
	return book, nil
}

// Delete soft-deletes a book that nobody is holding and removes its file.
func (s *CatalogService) Delete(ctx context.Context, actorID, id uint) error {
	book, err := s.Get(id)
	if err != nil {
		return err
	}
	active, err := s.reservations.CountActiveForBook(id)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrBookOnLoan
	}
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, books.ErrNotFound) {
			return ErrBookNotFound
		}
		return err
	}
	if s.deps.Storage != nil {
		for _, path := range []string{book.FilePath, book.CoverPath} {
			if path == "" {
				continue
			}
			if err := s.deps.Storage.Delete(ctx, path); err != nil {
				log.Warn().Err(err).Uint("book_id", id).Str("path", path).Msg("Failed to remove book file")
			}
		}
	}
	s.record(actorID, "delete", book, "Deleted "+book.Title)
	return nil
}

// AttachFile stores a PDF as the book's digital copy, replacing any
// previous one.
func (s *CatalogService) AttachFile(ctx context.Context, actorID, id uint, content io.Reader) (*entities.Book, error) {
	if s.deps.Storage == nil {
		return nil, ErrStorageDisabled
	}
	book, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	info, err := s.deps.Storage.Save(ctx, booksDir, content, s.deps.MaxUpload, "application/pdf")
	if err != nil {
		return nil, uploadError(err)
	}

	pages := 0
	if local, err := s.deps.Storage.LocalPath(info.Path); err == nil {
		pages = storage.PDFPageCount(local)
	}

	if err := s.repo.AttachFile(id, info.Path, info.Size, pages); err != nil {
		_ = s.deps.Storage.Delete(ctx, info.Path)
		if errors.Is(err, books.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if book.HasFile() && book.FilePath != info.Path {
		if err := s.deps.Storage.Delete(ctx, book.FilePath); err != nil {
			log.Warn().Err(err).Uint("book_id", id).Msg("Failed to remove replaced book file")
		}
	}

	book.FilePath, book.FileSize, book.PageCount, book.IsDigital = info.Path, info.Size, pages, true
	s.deps.audit(audit.Entry{
		ActorID:     actorID,
		EventType:   entities.AuditEventCatalog,
		Action:      "attach_file",
		Description: fmt.Sprintf("Uploaded %s (%s, %d pages) for %s", info.Name, info.HumanSize(), pages, book.Title),
		EntityType:  "book",
		EntityID:    book.ID,
	})
	return book, nil
}

// OpenFile returns the digital copy for streaming.
func (s *CatalogService) OpenFile(ctx context.Context, id uint) (storage.ReadSeekCloser, *storage.FileInfo, *entities.Book, error) {
	if s.deps.Storage == nil {
		return nil, nil, nil, ErrStorageDisabled
	}
	book, err := s.Get(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if !book.HasFile() {
		return nil, nil, nil, ErrBookFileNotFound
	}
	f, info, err := s.deps.Storage.Open(ctx, book.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil, ErrBookFileNotFound
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return f, info, book, nil
}

func (s *CatalogService) record(actorID uint, action string, book *entities.Book, desc string) {
	s.deps.audit(audit.Entry{
		ActorID:     actorID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: desc,
		EntityType:  "book",
		EntityID:    book.ID,
	})
	s.deps.invalidate()
}

// uploadError turns storage rejections into field errors.
func uploadError(err error) error {
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return validation.Field("file", "unsupported file type")
	case errors.Is(err, storage.ErrEmpty):
		return validation.Field("file", "is empty")
	case errors.Is(err, storage.ErrTooLarge):
		return validation.Field("file", "exceeds the upload limit")
	}
	return fmt.Errorf("failed to store file: %w", err)
}
