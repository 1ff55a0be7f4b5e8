package http

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// GalleryController serves gallery images.
type GalleryController struct {
	service *services.GalleryService
}

func NewGalleryController(service *services.GalleryService) *GalleryController {
	return &GalleryController{service: service}
}

// List handles GET /api/gallery
func (gc *GalleryController) List(c *gin.Context) {
	limit, offset := pagination(c)
	items, total, err := gc.service.List(limit, offset)
	if err != nil {
		respondServiceError(c, err, "list gallery")
		return
	}
	c.JSON(http.StatusOK, newPage(items, total, limit, offset))
}

// Upload handles POST /api/gallery (multipart: file, title, caption).
func (gc *GalleryController) Upload(c *gin.Context) {
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

	item, err := gc.service.Upload(c.Request.Context(), GetUserID(c), c.PostForm("title"), c.PostForm("caption"), f)
	if err != nil {
		respondServiceError(c, err, "upload gallery image")
		return
	}
	respondCreated(c, gin.H{"item": item})
}

// File handles GET /api/gallery/:id/file
func (gc *GalleryController) File(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	f, info, item, err := gc.service.OpenFile(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "open gallery image")
		return
	}
	defer f.Close()

	serveInline(c, f, item.ContentType, downloadName(item.Title, path.Ext(item.FilePath)), info.ModifiedAt)
}

// Delete handles DELETE /api/gallery/:id
func (gc *GalleryController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := gc.service.Delete(c.Request.Context(), GetUserID(c), id); err != nil {
		respondServiceError(c, err, "delete gallery image")
		return
	}
	respondSuccess(c, "image deleted")
}
