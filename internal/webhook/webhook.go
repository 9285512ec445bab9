// Package webhook forwards submissions and contact requests to the firm's
// intake webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

// Payload kinds carried in the JSON "tipo" field.
const (
	KindQuestionnaire = "cuestionario_lso"
	KindContact       = "contacto"
)

const defaultTimeout = 10 * time.Second

// Config holds the webhook client settings.
type Config struct {
	URL     string
	Format  model.WebhookFormat
	Timeout time.Duration
}

// Client posts to a single webhook URL.
type Client struct {
	url        string
	format     model.WebhookFormat
	httpClient *http.Client
	now        func() time.Time
}

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a webhook client. An empty format means JSON.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", cfg.URL)
	}
	switch cfg.Format {
	case "":
		cfg.Format = model.WebhookJSON
	case model.WebhookJSON, model.WebhookForm:
	default:
		return nil, fmt.Errorf("unknown webhook format %q", cfg.Format)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		url:        cfg.URL,
		format:     cfg.Format,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}, nil
}

// Name identifies the webhook as a submission sink.
func (c *Client) Name() string { return "webhook" }

// envelope is the JSON body of every webhook call.
type envelope struct {
	Tipo  string `json:"tipo"`
	Datos any    `json:"datos"`
	Fecha string `json:"fecha"`
}

// Send posts a finished questionnaire.
func (c *Client) Send(ctx context.Context, sub model.Submission) error {
	if c.format == model.WebhookForm {
		return c.postForm(ctx, submissionForm(sub, c.timestamp()))
	}
	return c.postJSON(ctx, envelope{Tipo: KindQuestionnaire, Datos: sub, Fecha: c.timestamp()})
}

// PostContact posts a stand-alone contact request.
func (c *Client) PostContact(ctx context.Context, contact model.Contact) error {
	if c.format == model.WebhookForm {
		return c.postForm(ctx, contactForm(contact, c.timestamp()))
	}
	return c.postJSON(ctx, envelope{Tipo: KindContact, Datos: contact, Fecha: c.timestamp()})
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

func contactForm(contact model.Contact, ts string) url.Values {
	v := url.Values{}
	v.Set("name", contact.Nombre)
	v.Set("apellidos", contact.Apellidos)
	v.Set("telefono", contact.Telefono)
	v.Set("correo", contact.Email)
	if contact.Mensaje != "" {
		v.Set("mensaje", contact.Mensaje)
	}
	v.Set("timestamp", ts)
	return v
}

func submissionForm(sub model.Submission, ts string) url.Values {
	var v url.Values
	if sub.Contact != nil {
		v = contactForm(*sub.Contact, ts)
	} else {
		v = url.Values{}
		v.Set("timestamp", ts)
	}
	v.Set("id", sub.ID)
	v.Set("stage", string(sub.Stage))
	v.Set("eligible", strconv.FormatBool(sub.Eligible))
	reasons := make([]string, len(sub.Reasons))
	for i, r := range sub.Reasons {
		reasons[i] = string(r)
	}
	v.Set("reasons", strings.Join(reasons, ","))
	addAnswers(v, sub.PrimaryAnswers)
	addAnswers(v, sub.AssetAnswers)
	return v
}

func addAnswers(v url.Values, a questionnaire.Answers) {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v.Set(id, a[id])
	}
}

func (c *Client) postJSON(ctx context.Context, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}
	return c.post(ctx, "application/json", bytes.NewReader(data))
}

func (c *Client) postForm(ctx context.Context, v url.Values) error {
	return c.post(ctx, "application/x-www-form-urlencoded", strings.NewReader(v.Encode()))
}

func (c *Client) post(ctx context.Context, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
