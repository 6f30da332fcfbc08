package domain

import "testing"

func TestStreamStatus_IsValid(t *testing.T) {
	t.Parallel()

	for _, s := range []StreamStatus{StreamStatusActive, StreamStatusPaused, StreamStatusCompleted, StreamStatusCancelled} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if StreamStatus("DRAINED").IsValid() {
		t.Error("unknown status should be invalid")
	}
}

func TestStreamStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	tests := map[StreamStatus]bool{
		StreamStatusActive:    false,
		StreamStatusPaused:    false,
		StreamStatusCompleted: true,
		StreamStatusCancelled: true,
	}
	for s, want := range tests {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestNotificationType_IsValid(t *testing.T) {
	t.Parallel()

	if !NotificationLowBalance.IsValid() || !NotificationSystem.IsValid() {
		t.Fatal("expected valid notification types")
	}
	if NotificationType("").IsValid() {
		t.Fatal("empty notification type should be invalid")
	}
}

func TestEventType_IsValid(t *testing.T) {
	t.Parallel()

	if !EventPaymentClaimed.IsValid() {
		t.Fatal("PAYMENT_CLAIMED should be valid")
	}
	if EventType("STREAM_TOPPED_UP").IsValid() {
		t.Fatal("unknown event should be invalid")
	}
}
