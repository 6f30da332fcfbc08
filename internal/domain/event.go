package domain

import "time"

// StreamEvent records one engine transition. Stream is the state after the
// transition. Seq is assigned by the event log on append and orders events
// across every process sharing the store.
type StreamEvent struct {
	Seq      int64
	Type     EventType
	StreamID int64
	Actor    Principal
	Amount   int64 // claimed sats for PAYMENT_CLAIMED, refund for STREAM_CANCELLED
	Fee      int64 // cancellation fee for STREAM_CANCELLED
	Stream   Stream
	At       time.Time
}
