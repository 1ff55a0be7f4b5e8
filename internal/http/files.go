package http

import (
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
)

// serveInline streams a stored file with range support.
func serveInline(c *gin.Context, f storage.ReadSeekCloser, contentType, name string, modified time.Time) {
	if contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	c.Header("Cache-Control", "private, max-age=3600")
	http.ServeContent(c.Writer, c.Request, name, modified, f)
}

// downloadName turns a title into a safe file name.
func downloadName(title, ext string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	name := []rune(b.String())
	if len(name) == 0 {
		return "file" + ext
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return string(name) + ext
}
