package model

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

// Contact holds the prospective client's contact details.
type Contact struct {
	Nombre    string `json:"nombre"`
	Apellidos string `json:"apellidos"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Mensaje   string `json:"mensaje,omitempty"`
}

// Contact field errors.
var (
	ErrNombreRequired    = errors.New("nombre is required")
	ErrApellidosRequired = errors.New("apellidos is required")
	ErrEmailInvalid      = errors.New("email is invalid")
	ErrTelefonoInvalid   = errors.New("telefono is invalid")
	ErrFieldTooLong      = errors.New("field too long")
)

// Normalize trims surrounding whitespace from every field.
func (c Contact) Normalize() Contact {
	c.Nombre = strings.TrimSpace(c.Nombre)
	c.Apellidos = strings.TrimSpace(c.Apellidos)
	c.Email = strings.TrimSpace(c.Email)
	c.Telefono = strings.TrimSpace(c.Telefono)
	c.Mensaje = strings.TrimSpace(c.Mensaje)
	return c
}

// Validate checks the contact fields and returns the first problem found.
func (c Contact) Validate() error {
	c = c.Normalize()
	switch {
	case c.Nombre == "":
		return ErrNombreRequired
	case len(c.Nombre) > 100:
		return fmt.Errorf("nombre: %w", ErrFieldTooLong)
	case c.Apellidos == "":
		return ErrApellidosRequired
	case len(c.Apellidos) > 100:
		return fmt.Errorf("apellidos: %w", ErrFieldTooLong)
	case len(c.Email) > 255:
		return fmt.Errorf("email: %w", ErrFieldTooLong)
	case !validEmail(c.Email):
		return ErrEmailInvalid
	case len(c.Telefono) < 9 || len(c.Telefono) > 20:
		return ErrTelefonoInvalid
	case len(c.Mensaje) > 2000:
		return fmt.Errorf("mensaje: %w", ErrFieldTooLong)
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Submission is a finished questionnaire session as delivered to the sinks.
type Submission struct {
	ID             string                     `json:"id"`
	CreatedAt      time.Time                  `json:"created_at"`
	Stage          questionnaire.Stage        `json:"stage"`
	Eligible       bool                       `json:"eligible"`
	Reasons        []questionnaire.ReasonCode `json:"reasons"`
	Contact        *Contact                   `json:"contact,omitempty"`
	PrimaryAnswers questionnaire.Answers      `json:"primary_answers"`
	AssetAnswers   questionnaire.Answers      `json:"asset_answers"`
}

// NewSubmission builds a submission from a finished engine. Asset answers
// the skip logic no longer reaches are left out.
func NewSubmission(id string, e *questionnaire.Engine, contact *Contact) Submission {
	v := e.Verdict()
	return Submission{
		ID:             id,
		CreatedAt:      time.Now().UTC(),
		Stage:          e.Stage(),
		Eligible:       v.Eligible,
		Reasons:        v.Reasons,
		Contact:        contact,
		PrimaryAnswers: e.PrimaryAnswers(),
		AssetAnswers:   e.ReachableAssetAnswers(),
	}
}

// DeliveryStatus is the outcome of sending a submission to one sink.
type DeliveryStatus string

const (
	DeliveryOK     DeliveryStatus = "ok"
	DeliveryFailed DeliveryStatus = "failed"
)

// Delivery records one sink's outcome for a submission.
type Delivery struct {
	ID           int64          `json:"id"`
	SubmissionID string         `json:"submission_id"`
	Sink         string         `json:"sink"`
	Status       DeliveryStatus `json:"status"`
	Attempts     int            `json:"attempts"`
	Error        string         `json:"error,omitempty"`
	At           time.Time      `json:"at"`
}

// AccessSession is a granted pass through the site access gate.
type AccessSession struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// WebhookFormat selects the webhook body encoding.
type WebhookFormat string

const (
	WebhookJSON WebhookFormat = "json"
	WebhookForm WebhookFormat = "form"
)

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	Lang               string        // UI language for reasons and documents
	BasePath           string        // URL prefix for sub-path deployments (e.g. "/lso")
	SecureCookies      bool          // Set Secure flag on cookies (disable for local dev)
	SessionTTL         time.Duration // idle questionnaire sessions are dropped after this
	AccessPasswordHash string        // bcrypt hash; empty disables the access gate
	AccessTTL          time.Duration
	AdminPasswordHash  string // bcrypt hash; empty disables the HTTP export
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
