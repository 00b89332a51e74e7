// Package notify sends the pipeline's transactional emails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
)

// Template names.
const (
	TemplateResults     = "results"
	TemplateRecovery    = "recovery"
	TemplateNeedsReview = "needs_review"
)

// Message is one email to send. Data is passed to the named template.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     Data
}

// Data feeds the email templates.
type Data struct {
	BrandName string
	Link      string
	Progress  int
	Stage     string
	Missing   []string
	Products  []domain.ProductImage
	MotifURL  string
}

// Sender delivers rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("email").Funcs(template.FuncMap{
	"title": func(s string) string { return cases.Title(language.English).String(s) },
}).ParseFS(templateFS, "templates/*.html"))

// Notifier renders templates and hands them to a Sender. Placeholder
// addresses are skipped.
type Notifier struct {
	sender Sender
	logger *infra.Logger
}

func NewNotifier(sender Sender, logger *infra.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Send renders and delivers msg. It returns (false, nil) when the recipient
// is a placeholder address.
func (n *Notifier) Send(ctx context.Context, msg Message) (bool, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" || domain.IsPlaceholderEmail(to) {
		return false, nil
	}
	html, err := Render(msg.Template, msg.Data)
	if err != nil {
		return false, err
	}
	subject := msg.Subject
	if subject == "" {
		subject = DefaultSubject(msg.Template, msg.Data.BrandName)
	}
	if err := n.sender.Send(ctx, to, subject, html); err != nil {
		return false, fmt.Errorf("send %s email: %w", msg.Template, err)
	}
	if n.logger != nil {
		n.logger.Info().Str("template", msg.Template).Str("to", maskEmail(to)).Msg("notify: email sent")
	}
	return true, nil
}

// Render executes the named email template.
func Render(name string, data Data) (string, error) {
	t := templates.Lookup(name + ".html")
	if t == nil {
		return "", fmt.Errorf("%w: unknown email template %q", domain.ErrValidation, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// DefaultSubject builds the subject line for a template.
func DefaultSubject(name, brand string) string {
	if brand == "" {
		brand = "your brand"
	}
	switch name {
	case TemplateResults:
		return fmt.Sprintf("Your %s merch mockups are ready", brand)
	case TemplateRecovery:
		return fmt.Sprintf("Pick up where you left off with %s", brand)
	case TemplateNeedsReview:
		return fmt.Sprintf("We need a hand with the %s brand details", brand)
	default:
		return "Update on your merch mockups"
	}
}

func maskEmail(email string) string {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domainPart
}
