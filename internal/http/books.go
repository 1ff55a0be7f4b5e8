package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// BooksController serves the catalogue and its digital copies.
type BooksController struct {
	catalog *services.CatalogService
}

func NewBooksController(catalog *services.CatalogService) *BooksController {
	return &BooksController{catalog: catalog}
}

// List handles GET /api/books?search=&category=&digital=&available=
func (bc *BooksController) List(c *gin.Context) {
	limit, offset := pagination(c)
	query := services.BookQuery{
		Search:      strings.TrimSpace(c.Query("search")),
		Category:    strings.TrimSpace(c.Query("category")),
		DigitalOnly: queryBool(c, "digital"),
		Available:   queryBool(c, "available"),
	}

	books, total, err := bc.catalog.List(query, limit, offset)
	if err != nil {
		respondServiceError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, newPage(books, total, limit, offset))
}

// Categories handles GET /api/books/categories
func (bc *BooksController) Categories(c *gin.Context) {
	categories, err := bc.catalog.Categories()
	if err != nil {
		respondServiceError(c, err, "book categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Get handles GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.Get(id)
	if err != nil {
		respondServiceError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

// Create handles POST /api/books
func (bc *BooksController) Create(c *gin.Context) {
	var in services.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	book, err := bc.catalog.Create(c.Request.Context(), GetUserID(c), in)
	if err != nil {
		respondServiceError(c, err, "create book")
		return
	}
	respondCreated(c, gin.H{"book": book})
}

// Update handles PUT /api/books/:id
func (bc *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in services.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	book, err := bc.catalog.Update(c.Request.Context(), GetUserID(c), id, in)
	if err != nil {
		respondServiceError(c, err, "update book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

// Delete handles DELETE /api/books/:id
func (bc *BooksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.catalog.Delete(c.Request.Context(), GetUserID(c), id); err != nil {
		respondServiceError(c, err, "delete book")
		return
	}
	respondSuccess(c, "book deleted")
}

// UploadFile handles POST /api/books/:id/file (multipart field "file").
func (bc *BooksController) UploadFile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondBadRequest(c, "could not read upload")
		return
	}
	defer f.Close()

	book, err := bc.catalog.AttachFile(c.Request.Context(), GetUserID(c), id, f)
	if err != nil {
		respondServiceError(c, err, "attach book file")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

// ReadFile handles GET /api/books/:id/file. The PDF is served inline so
// the browser's viewer renders it.
func (bc *BooksController) ReadFile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	f, info, book, err := bc.catalog.OpenFile(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "open book file")
		return
	}
	defer f.Close()

	serveInline(c, f, info.ContentType, downloadName(book.Title, ".pdf"), info.ModifiedAt)
}

// Lookup handles GET /api/books/lookup?isbn=
func (bc *BooksController) Lookup(c *gin.Context) {
	isbn := strings.TrimSpace(c.Query("isbn"))
	if isbn == "" {
		respondBadRequest(c, "isbn is required")
		return
	}
	result, err := bc.catalog.Lookup(c.Request.Context(), isbn)
	if err != nil {
		respondServiceError(c, err, "isbn lookup")
		return
	}
	c.JSON(http.StatusOK, result)
}

// FetchCover handles POST /api/books/:id/cover
func (bc *BooksController) FetchCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.FetchCover(c.Request.Context(), GetUserID(c), id)
	if err != nil {
		respondServiceError(c, err, "fetch cover")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

// Cover handles GET /api/books/:id/cover
func (bc *BooksController) Cover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	f, info, err := bc.catalog.OpenCover(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "open cover")
		return
	}
	defer f.Close()

	serveInline(c, f, info.ContentType, info.Name, info.ModifiedAt)
}
