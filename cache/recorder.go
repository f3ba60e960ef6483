package cache

// Recorder receives cache events as they happen.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Calls are made outside the store's lock; they must not block.
// - Errors: implementations must not panic.
type Recorder interface {
	RecordHit(name string)
	RecordMiss(name string)
	RecordEviction(name string)
	RecordExpiration(name string, n int)
}

type noopRecorder struct{}

func (noopRecorder) RecordHit(string)             {}
func (noopRecorder) RecordMiss(string)            {}
func (noopRecorder) RecordEviction(string)        {}
func (noopRecorder) RecordExpiration(string, int) {}
