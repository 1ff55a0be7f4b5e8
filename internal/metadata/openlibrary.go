// Package metadata looks up catalogue records on Open Library so that staff
// can prefill a new book from its ISBN and attach a cover image.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
)

const userAgent = "DavelLibrary/1.0 (catalogue lookup)"

var (
	ErrInvalidISBN = errors.New("invalid ISBN")
	ErrNotFound    = errors.New("no record found")
)

// BookDetails is what Open Library knows about an edition.
type BookDetails struct {
	Title         string   `json:"title"`
	Author        string   `json:"author,omitempty"`
	ISBN          string   `json:"isbn"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
	Description   string   `json:"description,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
}

// Open Library asks anonymous callers for at most one request per second.
const requestInterval = time.Second

// Client talks to the Open Library books and covers APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	coversURL  string
	limiter    *rate.Limiter
}

// NewClient creates a client limited to one request per second.
func NewClient(cfg config.Metadata) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base, covers := cfg.OpenLibraryURL, cfg.CoversURL
	if base == "" {
		base = "https://openlibrary.org"
	}
	if covers == "" {
		covers = "https://covers.openlibrary.org"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(base, "/"),
		coversURL:  strings.TrimRight(covers, "/"),
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// LookupISBN returns the edition with the given ISBN-10 or ISBN-13.
func (c *Client) LookupISBN(ctx context.Context, isbn string) (*BookDetails, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrInvalidISBN
	}

	var edition openLibraryEdition
	if err := c.getJSON(ctx, fmt.Sprintf("%s/isbn/%s.json", c.baseURL, isbn), &edition); err != nil {
		return nil, fmt.Errorf("lookup ISBN %s: %w", isbn, err)
	}

	details := &BookDetails{
		Title:         strings.TrimSpace(edition.Title),
		ISBN:          isbn,
		PublishedYear: extractYear(edition.PublishDate),
		Description:   edition.description(),
		Subjects:      firstN(edition.Subjects, 10),
		PageCount:     edition.NumberOfPages,
		CoverURL:      c.CoverURL(isbn),
	}
	if len(edition.Publishers) > 0 {
		details.Publisher = edition.Publishers[0]
	}

	if len(edition.Authors) > 0 {
		name, err := c.authorName(ctx, edition.Authors[0].Key)
		if err != nil {
			log.Debug().Err(err).Str("isbn", isbn).Msg("Could not resolve author")
		}
		details.Author = name
	}
	return details, nil
}

// CoverURL is the large cover image for an ISBN. Open Library answers 404
// for unknown covers because FetchCover asks for ?default=false.
func (c *Client) CoverURL(isbn string) string {
	return fmt.Sprintf("%s/b/isbn/%s-L.jpg", c.coversURL, isbn)
}

// FetchCover downloads the cover image for isbn. The caller closes the body.
func (c *Client) FetchCover(ctx context.Context, isbn string) (io.ReadCloser, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrInvalidISBN
	}
	resp, err := c.get(ctx, c.CoverURL(isbn)+"?default=false")
	if err != nil {
		return nil, fmt.Errorf("fetch cover for %s: %w", isbn, err)
	}
	return resp.Body, nil
}

func (c *Client) authorName(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("empty author key")
	}
	var author struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, c.baseURL+key+".json", &author); err != nil {
		return "", err
	}
	return author.Name, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get performs a rate-limited GET. Any status other than 200 is an error;
// 404 maps to ErrNotFound.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// NormalizeISBN strips hyphens and spaces and returns "" unless the result
// is a well-formed ISBN-10 or ISBN-13.
func NormalizeISBN(isbn string) string {
	isbn = strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn))
	isbn = strings.ToUpper(isbn)

	switch len(isbn) {
	case 10:
		for i, r := range isbn {
			if (r < '0' || r > '9') && !(i == 9 && r == 'X') {
				return ""
			}
		}
	case 13:
		for _, r := range isbn {
			if r < '0' || r > '9' {
				return ""
			}
		}
	default:
		return ""
	}
	return isbn
}

// extractYear finds a plausible four-digit year in a free-form date.
func extractYear(dateStr string) int {
	dateStr = strings.TrimSpace(dateStr)
	for _, format := range []string{"2006", "January 2, 2006", "Jan 2, 2006", "2006-01-02", "January 2006"} {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t.Year()
		}
	}
	for i := 0; i+4 <= len(dateStr); i++ {
		if year, err := strconv.Atoi(dateStr[i : i+4]); err == nil && year > 1000 && year < 3000 {
			return year
		}
	}
	return 0
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

type openLibraryEdition struct {
	Title         string   `json:"title"`
	Authors       []keyRef `json:"authors"`
	Publishers    []string `json:"publishers"`
	PublishDate   string   `json:"publish_date"`
	NumberOfPages int      `json:"number_of_pages"`
	Description   any      `json:"description"` // string or {type, value}
	Subjects      []string `json:"subjects"`
}

type keyRef struct {
	Key string `json:"key"`
}

func (e openLibraryEdition) description() string {
	switch v := e.Description.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
