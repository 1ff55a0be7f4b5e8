package storage

import (
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// PDFPageCount returns the number of pages in a PDF, or 0 when the file
// cannot be parsed. The parser panics on some malformed input.
func PDFPageCount(path string) (pages int) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("path", path).Interface("panic", r).Msg("PDF parser panicked")
			pages = 0
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Could not read PDF")
		return 0
	}
	defer f.Close()
	return r.NumPage()
}
