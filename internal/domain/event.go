package domain

// LogEvent is a single candidate event yielded by an event source.
// Ephemeral: only the signature is required to attempt resolution, the log
// lines are whatever context the transport happened to deliver.
type LogEvent struct {
	Signature string   // transaction signature
	Slot      int64    // slot from the subscription context, 0 if unknown
	Logs      []string // raw log lines, may be empty in poll mode
}
