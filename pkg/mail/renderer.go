package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

// Template names.
const (
	TemplateRegistrationConfirmation = "registration_confirmation"
	TemplateAdminNotification        = "admin_notification"
	TemplateVerificationConfirmation = "verification_confirmation"
)

//go:embed templates/*.html
var templateFS embed.FS

// Event describes the event the emails refer to.
type Event struct {
	Name      string
	Title     string
	Dates     string
	Venue     string
	Organizer string
}

// Registrant is the registration snapshot rendered into emails.
type Registrant struct {
	RegistrationNumber string
	FullName           string
	Email              string
	ContactNumber      string
	Department         string
	Ken                string
	FoodPreference     string
	RegistrationType   string
	Accommodation      string
	VerifiedNumber     string
	CreatedBy          string
}

// TemplateData is passed to every template.
type TemplateData struct {
	Event      Event
	Registrant Registrant
	Action     string
}

// Renderer holds the parsed email templates. Each template file defines a "subject" and a "body".
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	names := []string{
		TemplateRegistrationConfirmation,
		TemplateAdminNotification,
		TemplateVerificationConfirmation,
	}
	r := &Renderer{templates: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		tmpl, err := template.New(name).Funcs(template.FuncMap{
			"actionLabel": actionLabel,
		}).ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render produces the subject and HTML body for the named template.
func (r *Renderer) Render(name string, to string, data TemplateData) (Message, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", name)
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", name, err)
	}

	return Message{
		To:      to,
		Subject: strings.TrimSpace(subject.String()),
		HTML:    body.String(),
	}, nil
}

func actionLabel(action string) string {
	switch action {
	case "VERIFIED":
		return "Registration Verified"
	case "CREATED_BY_ADMIN":
		return "Manual Registration"
	default:
		return "New Registration"
	}
}
