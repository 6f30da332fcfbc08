package domain

// UserStats summarises one principal's streams. Amounts are sats.
type UserStats struct {
	Principal           Principal
	StreamsCreated      int
	StreamsReceived     int
	TotalSent           int64
	TotalReceived       int64
	AvgStreamSize       int64
	TotalFeesPaid       int64
	ActiveStreams       int
	UnreadNotifications int
}

// GlobalStats summarises every stream in the ledger.
type GlobalStats struct {
	TotalStreamsCreated int
	TotalVolumeLocked   int64
	TotalVolumeClaimed  int64
	ActiveStreams       int
	PausedStreams       int
	CompletedStreams    int
	CancelledStreams    int
}
