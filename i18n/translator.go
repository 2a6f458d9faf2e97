// Package i18n localizes action errors and notification emails. Messages
// live in the embedded active.<locale>.toml files.
package i18n

import (
	"embed"
	"strings"

	"github.com/goliatone/go-initiatives/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

var localeFiles = []string{"active.ar.toml", "active.en.toml", "active.fr.toml"}

// Translator wraps a go-i18n bundle. Lookups fall back to the default
// locale and finally to the message id.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	tags            []language.Tag
	matcher         language.Matcher
	logger          core.Logger
}

type Option func(*Translator)

func WithLogger(logger core.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewTranslator(defaultLocale string, opts ...Option) *Translator {
	tag, err := language.Parse(strings.TrimSpace(defaultLocale))
	if err != nil {
		tag = language.English
	}
	translator := &Translator{
		bundle:          i18n.NewBundle(tag),
		defaultLanguage: tag,
		logger:          glog.Ensure(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(translator)
		}
	}
	translator.bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range localeFiles {
		if _, err := translator.bundle.LoadMessageFileFS(localeFS, file); err != nil {
			translator.logger.Error("i18n: failed to load locale file", "file", file, "error", err)
		}
	}
	translator.tags = translator.bundle.LanguageTags()
	translator.matcher = language.NewMatcher(translator.tags)
	return translator
}

func (t *Translator) T(locale, key string, data map[string]any) string {
	if t == nil || key == "" {
		return key
	}

	languages := make([]string, 0, 2)
	if locale = strings.TrimSpace(locale); locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	localizer := i18n.NewLocalizer(t.bundle, languages...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		t.logger.Debug("i18n: localize failed", "key", key, "locales", languages, "error", err)
		return key
	}
	return msg
}

// Match picks the best supported locale for an Accept-Language header or a
// stored user preference.
func (t *Translator) Match(preferences ...string) string {
	if t == nil {
		return ""
	}
	tags := make([]language.Tag, 0, len(preferences))
	for _, preference := range preferences {
		parsed, _, err := language.ParseAcceptLanguage(preference)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return t.defaultLanguage.String()
	}
	_, index, confidence := t.matcher.Match(tags...)
	if confidence == language.No {
		return t.defaultLanguage.String()
	}
	base, _ := t.tags[index].Base()
	return base.String()
}

// Locales lists the locales with a message file.
func (t *Translator) Locales() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.tags))
	for _, tag := range t.tags {
		out = append(out, tag.String())
	}
	return out
}

var _ core.Translator = (*Translator)(nil)
