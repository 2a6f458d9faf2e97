package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/goliatone/go-initiatives/core"
)

const (
	keySubject  = "post_notification_subject"
	keyGreeting = "post_notification_greeting"
	keyIntro    = "post_notification_intro"
	keyFooter   = "post_notification_footer"
)

var rtlLocales = map[string]struct{}{"ar": {}, "fa": {}, "he": {}, "ur": {}}

var postNotificationHTML = template.Must(template.New("post_notification").Parse(`<!DOCTYPE html>
<html lang="{{.Locale}}" dir="{{.Dir}}">
<body>
<p>{{.Greeting}}</p>
<p>{{.Intro}}</p>
<h2>{{.PostTitle}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Link}}<p><a href="{{.Link}}">{{.Link}}</a></p>
{{end}}<hr>
<p><small>{{.Footer}}</small></p>
</body>
</html>
`))

// Renderer turns a post and one queued task into a localized email.
type Renderer struct {
	translator    core.Translator
	defaultLocale string
	linkBaseURL   string
}

type RendererOption func(*Renderer)

// WithLinkBaseURL adds a link to the post, e.g. https://app.example.org.
func WithLinkBaseURL(base string) RendererOption {
	return func(r *Renderer) {
		r.linkBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

func NewRenderer(translator core.Translator, defaultLocale string, opts ...RendererOption) (*Renderer, error) {
	if translator == nil {
		return nil, fmt.Errorf("mailer: translator is required")
	}
	renderer := &Renderer{
		translator:    translator,
		defaultLocale: strings.TrimSpace(defaultLocale),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(renderer)
		}
	}
	return renderer, nil
}

func (r *Renderer) RenderPostNotification(_ context.Context, post core.Post, task core.PostNotificationTask) (core.OutboundEmail, error) {
	if r == nil || r.translator == nil {
		return core.OutboundEmail{}, fmt.Errorf("mailer: renderer is not configured")
	}
	to := strings.TrimSpace(task.RecipientEmail)
	if to == "" {
		return core.OutboundEmail{}, errInvalidMessage(task.ID, "recipient is required")
	}
	locale := strings.TrimSpace(task.RecipientLocale)
	if locale == "" {
		locale = r.defaultLocale
	}
	name := strings.TrimSpace(task.RecipientName)
	if name == "" {
		name = to
	}
	initiativeTitle := strings.TrimSpace(post.InitiativeTitle)
	if initiativeTitle == "" {
		initiativeTitle = strings.TrimSpace(post.Title)
	}
	data := map[string]any{
		"Name":            name,
		"InitiativeTitle": initiativeTitle,
		"PostTitle":       strings.TrimSpace(post.Title),
	}

	view := struct {
		Locale     string
		Dir        string
		Greeting   string
		Intro      string
		PostTitle  string
		Paragraphs []string
		Link       string
		Footer     string
	}{
		Locale:     locale,
		Dir:        textDirection(locale),
		Greeting:   r.translator.T(locale, keyGreeting, data),
		Intro:      r.translator.T(locale, keyIntro, data),
		PostTitle:  strings.TrimSpace(post.Title),
		Paragraphs: paragraphs(post.Body),
		Link:       r.postLink(post),
		Footer:     r.translator.T(locale, keyFooter, data),
	}

	var html bytes.Buffer
	if err := postNotificationHTML.Execute(&html, view); err != nil {
		return core.OutboundEmail{}, fmt.Errorf("mailer: render html: %w", err)
	}

	var text strings.Builder
	text.WriteString(view.Greeting + "\n\n")
	text.WriteString(view.Intro + "\n\n")
	text.WriteString(view.PostTitle + "\n\n")
	for _, paragraph := range view.Paragraphs {
		text.WriteString(paragraph + "\n\n")
	}
	if view.Link != "" {
		text.WriteString(view.Link + "\n\n")
	}
	text.WriteString("--\n" + view.Footer + "\n")

	return core.OutboundEmail{
		TaskID:  task.ID,
		To:      to,
		Name:    strings.TrimSpace(task.RecipientName),
		Subject: r.translator.T(locale, keySubject, data),
		Text:    text.String(),
		HTML:    html.String(),
		Tags: map[string]string{
			"kind":          "post_notification",
			"post_id":       post.ID,
			"initiative_id": post.InitiativeID,
		},
	}, nil
}

func (r *Renderer) postLink(post core.Post) string {
	if r.linkBaseURL == "" || post.InitiativeID == "" || post.ID == "" {
		return ""
	}
	return r.linkBaseURL + "/initiatives/" + url.PathEscape(post.InitiativeID) + "/posts/" + url.PathEscape(post.ID)
}

func textDirection(locale string) string {
	base := strings.ToLower(locale)
	if idx := strings.IndexAny(base, "-_"); idx > 0 {
		base = base[:idx]
	}
	if _, ok := rtlLocales[base]; ok {
		return "rtl"
	}
	return "ltr"
}

func paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	parts := strings.Split(body, "\n\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ core.NotificationRenderer = (*Renderer)(nil)
