package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/database/books"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/metadata"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

const (
	coversDir     = "covers"
	maxCoverBytes = 5 << 20
)

var (
	ErrLookupDisabled    = errors.New("ISBN lookup is not configured")
	ErrLookupUnavailable = errors.New("catalogue lookup service unavailable")
	ErrLookupNotFound    = newError(ErrNotFound, "no catalogue record for this ISBN")
	ErrCoverNotFound     = newError(ErrNotFound, "book has no cover")
)

// BookLookup finds catalogue records by ISBN. *metadata.Client satisfies it.
type BookLookup interface {
	LookupISBN(ctx context.Context, isbn string) (*metadata.BookDetails, error)
	FetchCover(ctx context.Context, isbn string) (io.ReadCloser, error)
}

// SetLookup enables ISBN lookup and cover download.
func (s *CatalogService) SetLookup(l BookLookup) {
	s.lookup = l
}

// LookupResult is a prefilled create form plus the raw record.
type LookupResult struct {
	Book    BookInput             `json:"book"`
	Details *metadata.BookDetails `json:"details"`
}

// Lookup prefills a BookInput from the ISBN. Nothing is saved.
func (s *CatalogService) Lookup(ctx context.Context, isbn string) (*LookupResult, error) {
	if s.lookup == nil {
		return nil, ErrLookupDisabled
	}
	details, err := s.lookup.LookupISBN(ctx, isbn)
	if err != nil {
		return nil, lookupError(err)
	}

	in := BookInput{
		Title:         details.Title,
		Author:        details.Author,
		ISBN:          details.ISBN,
		Description:   truncate(details.Description, 10000),
		PublishedYear: details.PublishedYear,
		TotalCopies:   1,
	}
	if len(details.Subjects) > 0 {
		in.Category = truncate(details.Subjects[0], 100)
	}
	in.normalize()
	return &LookupResult{Book: in, Details: details}, nil
}

// FetchCover downloads the cover for the book's ISBN and stores it,
// replacing any previous cover.
func (s *CatalogService) FetchCover(ctx context.Context, actorID, id uint) (*entities.Book, error) {
	if s.lookup == nil {
		return nil, ErrLookupDisabled
	}
	if s.deps.Storage == nil {
		return nil, ErrStorageDisabled
	}
	book, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if book.ISBN == "" {
		return nil, validation.Field("isbn", "is required to fetch a cover")
	}

	body, err := s.lookup.FetchCover(ctx, book.ISBN)
	if err != nil {
		return nil, lookupError(err)
	}
	defer body.Close()

	info, err := s.deps.Storage.Save(ctx, coversDir, body, maxCoverBytes, GalleryImageTypes...)
	if err != nil {
		return nil, uploadError(err)
	}
	if err := s.repo.SetCover(id, info.Path); err != nil {
		_ = s.deps.Storage.Delete(ctx, info.Path)
		if errors.Is(err, books.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if book.HasCover() && book.CoverPath != info.Path {
		if err := s.deps.Storage.Delete(ctx, book.CoverPath); err != nil {
			log.Warn().Err(err).Uint("book_id", id).Msg("Failed to remove replaced cover")
		}
	}

	book.CoverPath = info.Path
	s.record(actorID, "fetch_cover", book, fmt.Sprintf("Fetched cover for %s (%s)", book.Title, info.HumanSize()))
	return book, nil
}

// OpenCover returns the stored cover image for streaming.
func (s *CatalogService) OpenCover(ctx context.Context, id uint) (storage.ReadSeekCloser, *storage.FileInfo, error) {
	if s.deps.Storage == nil {
		return nil, nil, ErrStorageDisabled
	}
	book, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if !book.HasCover() {
		return nil, nil, ErrCoverNotFound
	}
	f, info, err := s.deps.Storage.Open(ctx, book.CoverPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrCoverNotFound
	}
	return f, info, err
}

func lookupError(err error) error {
	switch {
	case errors.Is(err, metadata.ErrInvalidISBN):
		return validation.Field("isbn", "must be a valid ISBN-10 or ISBN-13")
	case errors.Is(err, metadata.ErrNotFound):
		return ErrLookupNotFound
	}
	log.Warn().Err(err).Msg("Catalogue lookup failed")
	return ErrLookupUnavailable
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
