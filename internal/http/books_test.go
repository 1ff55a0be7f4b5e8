package http

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

func TestBooksController_List(t *testing.T) {
	t.Run("returns empty page when no books", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/api/books", "", nil)

		require.Equal(t, http.StatusOK, w.Code)
		response := decode(t, w)
		assert.Equal(t, float64(0), response["total"])
		assert.Equal(t, float64(50), response["limit"])
		assert.Equal(t, false, response["has_more"])
	})

	t.Run("filters by search and category", func(t *testing.T) {
		s := newTestServer(t)
		librarian, _ := s.token("librarian", entities.UserRoleLibrarian)
		for _, b := range []map[string]any{
			{"title": "Things Fall Apart", "author": "Chinua Achebe", "category": "Fiction", "total_copies": 2},
			{"title": "Long Walk to Freedom", "author": "Nelson Mandela", "category": "Biography", "total_copies": 1},
		} {
			require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/books", librarian, b).Code)
		}

		w := s.do(http.MethodGet, "/api/books?search=achebe", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decode(t, w)["total"])

		w = s.do(http.MethodGet, "/api/books?category=Biography", "", nil)
		assert.Equal(t, float64(1), decode(t, w)["total"])

		w = s.do(http.MethodGet, "/api/books/categories", "", nil)
		assert.Contains(t, w.Body.String(), "Fiction")
	})
}

func TestBooksController_CRUD(t *testing.T) {
	s := newTestServer(t)
	librarian, _ := s.token("librarian", entities.UserRoleLibrarian)
	member, _ := s.token("member", entities.UserRoleMember)

	w := s.do(http.MethodPost, "/api/books", "", map[string]any{"title": "x", "author": "y"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/books", member, map[string]any{"title": "x", "author": "y"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/books", librarian, map[string]any{"author": "No Title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["details"], "title")

	w = s.do(http.MethodPost, "/api/books", librarian, map[string]any{
		"title": "Nervous Conditions", "author": "Tsitsi Dangarembga", "total_copies": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	book := decode(t, w)["book"].(map[string]any)
	assert.Equal(t, float64(3), book["available_copies"])
	path := fmt.Sprintf("/api/books/%d", uint(book["id"].(float64)))

	w = s.do(http.MethodPut, path, librarian, map[string]any{
		"title": "Nervous Conditions", "author": "Tsitsi Dangarembga", "category": "Fiction", "total_copies": 3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Fiction", decode(t, w)["book"].(map[string]any)["category"])

	w = s.do(http.MethodDelete, path, librarian, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/books/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBooksController_UploadAndRead(t *testing.T) {
	s := newTestServer(t)
	librarian, _ := s.token("librarian", entities.UserRoleLibrarian)
	member, _ := s.token("member", entities.UserRoleMember)

	w := s.do(http.MethodPost, "/api/books", librarian, map[string]any{"title": "Mine Boy", "author": "Peter Abrahams", "total_copies": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	id := uint(decode(t, w)["book"].(map[string]any)["id"].(float64))

	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/books/%d/file", id), &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+librarian)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	w = upload("notes.txt", []byte("plain text is not a book"))
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = s.do(http.MethodGet, fmt.Sprintf("/api/books/%d/file", id), member, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	w = upload("mine-boy.pdf", pdf)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["book"].(map[string]any)["is_digital"])

	w = s.do(http.MethodGet, fmt.Sprintf("/api/books/%d/file", id), member, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `inline; filename="Mine_Boy.pdf"`)
	assert.Equal(t, pdf, w.Body.Bytes())
}
