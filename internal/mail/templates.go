package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names an embedded email body.
type Template string

const (
	TemplateMembershipReceived Template = "membership_received"
	TemplateMembershipApproved Template = "membership_approved"
	TemplateMembershipRejected Template = "membership_rejected"
	TemplateReservationStatus  Template = "reservation_status"
	TemplateOverdueReminder    Template = "overdue_reminder"
	TemplateBroadcast          Template = "broadcast"
)

var allTemplates = []Template{
	TemplateMembershipReceived,
	TemplateMembershipApproved,
	TemplateMembershipRejected,
	TemplateReservationStatus,
	TemplateOverdueReminder,
	TemplateBroadcast,
}

// Renderer executes the embedded templates inside the shared layout.
type Renderer struct {
	appName   string
	baseURL   string
	templates map[Template]*template.Template
}

type view struct {
	AppName string
	BaseURL string
	Data    any
}

// NewRenderer parses every template once.
func NewRenderer(appName, baseURL string) (*Renderer, error) {
	if appName == "" {
		appName = "Library"
	}
	r := &Renderer{
		appName:   appName,
		baseURL:   baseURL,
		templates: make(map[Template]*template.Template, len(allTemplates)),
	}
	for _, name := range allTemplates {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(name)+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render returns the HTML body for a template.
func (r *Renderer) Render(name Template, data any) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view{AppName: r.appName, BaseURL: r.baseURL, Data: data}); err != nil {
		return "", fmt.Errorf("failed to execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Compose renders a template into a ready-to-send message.
func (r *Renderer) Compose(name Template, to []string, subject string, data any) (Message, error) {
	html, err := r.Render(name, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: r.subject(subject), HTML: html}, nil
}

func (r *Renderer) subject(s string) string {
	return "[" + r.appName + "] " + strings.TrimSpace(s)
}

// Paragraphs splits free text on blank lines for the broadcast template.
func Paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MembershipData fills the membership_* templates.
type MembershipData struct {
	FullName         string
	Email            string
	MembershipType   string
	SubmittedAt      string
	MembershipNumber string
	Fee              string
	Notes            string
}

// ReservationData fills reservation_status.
type ReservationData struct {
	Name      string
	BookTitle string
	Status    string
	ExpiresAt string
	DueAt     string
	LateFee   string
	Notes     string
}

// OverdueData fills overdue_reminder.
type OverdueData struct {
	Name      string
	BookTitle string
	DueAt     string
	DueAgo    string
	DailyFee  string
}

// BroadcastData fills broadcast.
type BroadcastData struct {
	Paragraphs []string
}
