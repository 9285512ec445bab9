package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

// DefaultLang is the language used when none is configured.
const DefaultLang = "es"

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var bundle *i18n.Bundle

// Init builds the translation bundle with lang as its default language and
// loads every embedded locale file.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return fmt.Errorf("list locales: %w", err)
	}
	for _, name := range files {
		if _, err := b.LoadMessageFileFS(localeFS, name); err != nil {
			return fmt.Errorf("load locale %s: %w", name, err)
		}
	}
	slog.Debug("locales loaded", "default", tag.String(), "languages", len(b.LanguageTags()))

	bundle = b
	return nil
}

// NewLocalizer creates a localizer for the given languages in order of
// preference. Entries may be tags or Accept-Language header values.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return i18n.NewLocalizer(bundle, DefaultLang)
}

// localize falls back to the message ID so a missing key shows up in the
// output instead of an empty string.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	s, err := localizerFromCtx(ctx).Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message; the count is available to the
// template as {{.Count}}.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

// ReasonText returns the display text for a disqualification reason.
func ReasonText(ctx context.Context, code questionnaire.ReasonCode) string {
	return T(ctx, "Reason_"+string(code))
}

// ReasonTexts localizes a list of reasons, keeping their order.
func ReasonTexts(ctx context.Context, codes []questionnaire.ReasonCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = ReasonText(ctx, c)
	}
	return out
}

// DocumentText returns the display text for a checklist document.
func DocumentText(ctx context.Context, doc questionnaire.Document) string {
	return T(ctx, "Doc_"+string(doc))
}

// DocumentTexts localizes a document checklist, keeping its order.
func DocumentTexts(ctx context.Context, docs []questionnaire.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = DocumentText(ctx, d)
	}
	return out
}
