package stablestore

// StableStore is the durable log a replica appends protocol state to
// before acknowledging. An *os.File satisfies it.
type StableStore interface {
	Write([]byte) (int, error)
	WriteAt([]byte, int64) (int, error)
	Sync() error
}
