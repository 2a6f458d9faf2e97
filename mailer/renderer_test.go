package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/i18n"
)

func testPost() core.Post {
	return core.Post{
		ID:              "pst_1",
		InitiativeID:    "ini_1",
		InitiativeTitle: "Beach cleanup",
		Title:           "Meeting point",
		Body:            "We meet at the pier.\n\nBring <gloves> & water.",
	}
}

func TestRenderer_LocalizesPerRecipient(t *testing.T) {
	renderer, err := NewRenderer(i18n.NewTranslator("ar"), "ar", WithLinkBaseURL("https://app.example.org/"))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	ctx := context.Background()

	english, err := renderer.RenderPostNotification(ctx, testPost(), core.PostNotificationTask{
		ID: "pnq_1", RecipientEmail: "a@example.com", RecipientName: "Ana", RecipientLocale: "en", PostID: "pst_1",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if english.Subject != "New update in Beach cleanup: Meeting point" {
		t.Fatalf("unexpected subject %q", english.Subject)
	}
	if english.TaskID != "pnq_1" || english.To != "a@example.com" {
		t.Fatalf("unexpected addressing %+v", english)
	}
	if !strings.Contains(english.Text, "Hello Ana,") || !strings.Contains(english.Text, "https://app.example.org/initiatives/ini_1/posts/pst_1") {
		t.Fatalf("unexpected text body %q", english.Text)
	}
	if !strings.Contains(english.HTML, "&lt;gloves&gt; &amp; water.") {
		t.Fatalf("expected escaped html body, got %q", english.HTML)
	}
	if english.Tags["post_id"] != "pst_1" {
		t.Fatalf("expected post tag, got %#v", english.Tags)
	}

	arabic, err := renderer.RenderPostNotification(ctx, testPost(), core.PostNotificationTask{
		ID: "pnq_2", RecipientEmail: "b@example.com", PostID: "pst_1",
	})
	if err != nil {
		t.Fatalf("render default locale: %v", err)
	}
	if !strings.Contains(arabic.HTML, `dir="rtl"`) {
		t.Fatalf("expected rtl html for default arabic locale")
	}
	if !strings.Contains(arabic.Text, "b@example.com") {
		t.Fatalf("expected email as greeting fallback, got %q", arabic.Text)
	}
}

func TestRenderer_RequiresRecipient(t *testing.T) {
	renderer, _ := NewRenderer(i18n.NewTranslator("en"), "en")
	_, err := renderer.RenderPostNotification(context.Background(), testPost(), core.PostNotificationTask{ID: "pnq_1"})
	if core.TextCode(err) != core.ErrorBadInput {
		t.Fatalf("expected bad input, got %v", err)
	}
}

func TestNewRenderer_RequiresTranslator(t *testing.T) {
	if _, err := NewRenderer(nil, "en"); err == nil {
		t.Fatalf("expected error without translator")
	}
}
