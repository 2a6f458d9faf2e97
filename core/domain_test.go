package core

import (
	"errors"
	"testing"
	"time"
)

func TestParticipationTransitionTo_ValidAndInvalid(t *testing.T) {
	participation := Participation{ID: "prt_1", Status: ParticipationStatusRegistered}
	if err := participation.TransitionTo(ParticipationStatusApproved, testNow); err != nil {
		t.Fatalf("expected registered -> approved: %v", err)
	}
	if participation.UpdatedAt != testNow {
		t.Fatalf("expected updated_at to move")
	}
	if err := participation.TransitionTo(ParticipationStatusApproved, testNow); err != nil {
		t.Fatalf("expected same-status transition to no-op: %v", err)
	}
	err := participation.TransitionTo(ParticipationStatusRejected, testNow)
	if !errors.Is(err, ErrInvalidParticipationStatusTransition) {
		t.Fatalf("expected approved -> rejected to fail, got %v", err)
	}
	if err := participation.TransitionTo(ParticipationStatusCancelled, testNow); err != nil {
		t.Fatalf("expected approved -> cancelled: %v", err)
	}
	if !ParticipationTransitionAllowed(ParticipationStatusCancelled, ParticipationStatusRegistered) {
		t.Fatalf("expected cancelled rows to be reactivatable")
	}
	if ParticipationTransitionAllowed(ParticipationStatusRejected, ParticipationStatusApproved) {
		t.Fatalf("expected rejected to be terminal")
	}
}

func TestInitiative_CapacityAndDeadline(t *testing.T) {
	unbounded := Initiative{CurrentParticipants: 1000}
	if unbounded.AtCapacity() {
		t.Fatalf("expected unbounded initiative never at capacity")
	}
	bounded := Initiative{MaxParticipants: intPtr(2), CurrentParticipants: 2}
	if !bounded.AtCapacity() {
		t.Fatalf("expected bounded initiative at capacity")
	}

	deadline := testNow.Add(time.Hour)
	initiative := Initiative{RegistrationDeadline: &deadline}
	if initiative.RegistrationClosed(testNow) {
		t.Fatalf("expected registration open before deadline")
	}
	if !initiative.RegistrationClosed(testNow.Add(2 * time.Hour)) {
		t.Fatalf("expected registration closed after deadline")
	}
	if !InitiativeStatus(" Published ").Joinable() || InitiativeStatusDraft.Joinable() {
		t.Fatalf("unexpected joinable statuses")
	}
}

func TestWebhookEvent_Data(t *testing.T) {
	event := WebhookEvent{Payload: map[string]any{"data": map[string]any{"email": "a@example.com"}}}
	if event.Data()["email"] != "a@example.com" {
		t.Fatalf("expected data payload, got %#v", event.Data())
	}
	if len((WebhookEvent{}).Data()) != 0 {
		t.Fatalf("expected empty data for empty payload")
	}
}

func TestSanitizeFormResponses(t *testing.T) {
	if SanitizeFormResponses(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
	out := SanitizeFormResponses(map[string]any{
		"  ":      "ignored",
		"note":    "   ",
		"days":    []string{" mon ", "", "tue"},
		"nested":  map[string]any{"x": "y"},
		"comment": "ok",
	})
	if len(out) != 2 {
		t.Fatalf("expected two answers, got %#v", out)
	}
	days, ok := out["days"].([]string)
	if !ok || len(days) != 2 || days[0] != "mon" {
		t.Fatalf("unexpected days %#v", out["days"])
	}
}
