package notification

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type draft struct {
	recipient domain.Principal
	typ       domain.NotificationType
	message   string
}

// btc renders sats as a fixed 8-decimal BTC amount.
func btc(sats int64) string {
	return decimal.New(sats, -8).StringFixed(8) + " BTC"
}

// draftsFor maps one engine event to the notifications it produces.
func draftsFor(ev domain.StreamEvent) ([]draft, error) {
	s := ev.Stream
	buffer := s.Buffer(ev.At)

	switch ev.Type {
	case domain.EventStreamCreated:
		return []draft{
			{s.Sender, domain.NotificationStreamCreated,
				fmt.Sprintf("Stream #%d to %s started: %s at %d sats/s.", s.ID, s.Recipient, btc(s.TotalLocked), s.Rate)},
			{s.Recipient, domain.NotificationStreamCreated,
				fmt.Sprintf("Incoming stream #%d from %s: %s at %d sats/s.", s.ID, s.Sender, btc(s.TotalLocked), s.Rate)},
		}, nil

	case domain.EventStreamPaused:
		return []draft{
			{s.Recipient, domain.NotificationStreamPaused,
				fmt.Sprintf("Stream #%d from %s was paused. %s is claimable.", s.ID, s.Sender, btc(buffer))},
		}, nil

	case domain.EventStreamResumed:
		return []draft{
			{s.Recipient, domain.NotificationStreamResumed,
				fmt.Sprintf("Stream #%d from %s resumed at %d sats/s.", s.ID, s.Sender, s.Rate)},
		}, nil

	case domain.EventStreamCompleted:
		recipientMsg := fmt.Sprintf("Stream #%d from %s completed. All %s received.", s.ID, s.Sender, btc(s.TotalLocked))
		if buffer > 0 {
			recipientMsg = fmt.Sprintf("Stream #%d from %s completed. %s is left to claim.", s.ID, s.Sender, btc(buffer))
		}
		return []draft{
			{s.Sender, domain.NotificationStreamCompleted,
				fmt.Sprintf("Stream #%d to %s completed: %s fully streamed.", s.ID, s.Recipient, btc(s.TotalLocked))},
			{s.Recipient, domain.NotificationStreamCompleted, recipientMsg},
		}, nil

	case domain.EventStreamCancelled:
		return []draft{
			{s.Sender, domain.NotificationStreamCancelled,
				fmt.Sprintf("You cancelled stream #%d to %s. Refunded %s (fee %s).", s.ID, s.Recipient, btc(ev.Amount-ev.Fee), btc(ev.Fee))},
			{s.Recipient, domain.NotificationStreamCancelled,
				fmt.Sprintf("Stream #%d from %s was cancelled. %s remains claimable.", s.ID, s.Sender, btc(buffer))},
		}, nil

	case domain.EventPaymentClaimed:
		return []draft{
			{s.Recipient, domain.NotificationPaymentReceived,
				fmt.Sprintf("You received %s from stream #%d.", btc(ev.Amount), s.ID)},
			{s.Sender, domain.NotificationPaymentReceived,
				fmt.Sprintf("%s claimed %s from stream #%d.", s.Recipient, btc(ev.Amount), s.ID)},
		}, nil
	}

	return nil, domain.NewValidationError("type", fmt.Sprintf("unknown event type %q", ev.Type))
}

func lowBalanceDraft(s domain.Stream, remaining int64, percent int64) draft {
	return draft{
		recipient: s.Sender,
		typ:       domain.NotificationLowBalance,
		message: fmt.Sprintf("Stream #%d to %s is running low: %s (%d%%) left to stream.",
			s.ID, s.Recipient, btc(remaining), percent),
	}
}
