package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/metadata"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage/storagetest"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

type fakeLookup struct {
	details map[string]*metadata.BookDetails
	covers  map[string][]byte
	err     error
	fetched int
}

func (f *fakeLookup) LookupISBN(_ context.Context, isbn string) (*metadata.BookDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	if metadata.NormalizeISBN(isbn) == "" {
		return nil, metadata.ErrInvalidISBN
	}
	d, ok := f.details[metadata.NormalizeISBN(isbn)]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return d, nil
}

func (f *fakeLookup) FetchCover(_ context.Context, isbn string) (io.ReadCloser, error) {
	f.fetched++
	b, ok := f.covers[isbn]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestCatalog_LookupDisabled(t *testing.T) {
	env := newTestEnv(t)
	svc := NewCatalogService(env.deps)

	_, err := svc.Lookup(context.Background(), "9780435905255")
	assert.ErrorIs(t, err, ErrLookupDisabled)
	_, err = svc.FetchCover(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrLookupDisabled)
}

func TestCatalog_Lookup(t *testing.T) {
	env := newTestEnv(t)
	svc := NewCatalogService(env.deps)
	svc.SetLookup(&fakeLookup{details: map[string]*metadata.BookDetails{
		"9780435905255": {
			Title:         " Things Fall Apart ",
			Author:        "Chinua Achebe",
			ISBN:          "9780435905255",
			PublishedYear: 1958,
			Subjects:      []string{"Fiction", "Nigeria"},
		},
	}})
	ctx := context.Background()

	result, err := svc.Lookup(ctx, "978-0-435-90525-5")
	require.NoError(t, err)
	assert.Equal(t, "Things Fall Apart", result.Book.Title)
	assert.Equal(t, "Fiction", result.Book.Category)
	assert.Equal(t, 1958, result.Book.PublishedYear)
	assert.Equal(t, 1, result.Book.TotalCopies)

	_, err = svc.Lookup(ctx, "9780000000001")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Lookup(ctx, "abc")
	require.ErrorIs(t, err, validation.ErrInvalid)
	fields, _ := validation.Details(err)
	assert.Contains(t, fields, "isbn")

	svc.SetLookup(&fakeLookup{err: errors.New("connection refused")})
	_, err = svc.Lookup(ctx, "9780435905255")
	assert.ErrorIs(t, err, ErrLookupUnavailable)
}

func TestCatalog_FetchCover(t *testing.T) {
	env := newTestEnv(t)
	svc := NewCatalogService(env.deps)
	lookup := &fakeLookup{covers: map[string][]byte{
		"9780435905007": storagetest.PNG(),
		"9780435905014": []byte("<html>not an image</html>"),
	}}
	svc.SetLookup(lookup)
	ctx := context.Background()

	book, err := svc.Create(ctx, 1, bookInput("Petals of Blood", 1))
	require.NoError(t, err)

	_, _, err = svc.OpenCover(ctx, book.ID)
	assert.ErrorIs(t, err, ErrCoverNotFound)

	updated, err := svc.FetchCover(ctx, 1, book.ID)
	require.NoError(t, err)
	require.True(t, updated.HasCover())
	first := updated.CoverPath

	f, info, err := svc.OpenCover(ctx, book.ID)
	require.NoError(t, err)
	got, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, storagetest.PNG(), got)
	assert.Equal(t, "image/png", info.ContentType)

	// Refetching replaces the stored file.
	updated, err = svc.FetchCover(ctx, 1, book.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, updated.CoverPath)
	exists, err := env.deps.Storage.Exists(ctx, first)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Contains(t, env.auditor.actions(), "catalog:fetch_cover")

	t.Run("rejects non-image content", func(t *testing.T) {
		in := bookInput("Devil on the Cross", 1)
		in.ISBN = "9780435905014"
		other, err := svc.Create(ctx, 1, in)
		require.NoError(t, err)
		_, err = svc.FetchCover(ctx, 1, other.ID)
		assert.ErrorIs(t, err, validation.ErrInvalid)
	})

	t.Run("requires isbn", func(t *testing.T) {
		in := bookInput("Weep Not, Child", 1)
		in.ISBN = ""
		other, err := svc.Create(ctx, 1, in)
		require.NoError(t, err)
		before := lookup.fetched
		_, err = svc.FetchCover(ctx, 1, other.ID)
		assert.ErrorIs(t, err, validation.ErrInvalid)
		assert.Equal(t, before, lookup.fetched)
	})

	t.Run("delete removes cover", func(t *testing.T) {
		current, err := svc.Get(book.ID)
		require.NoError(t, err)
		require.NoError(t, svc.Delete(ctx, 1, book.ID))
		exists, err := env.deps.Storage.Exists(ctx, current.CoverPath)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
