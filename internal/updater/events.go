// Package updater downloads application updates and reports progress.
package updater

// Event is a progress notification emitted during an update download.
// For any download the sequence is one Started, zero or more Progress,
// then one Finished on success. Failed downloads never emit Finished.
type Event interface {
	isEvent()
}

// Started is emitted once before the first chunk. ContentLength is -1
// when the server did not announce a size.
type Started struct {
	ContentLength int64
}

// Progress is emitted after each chunk is written.
type Progress struct {
	ChunkLength int
	Downloaded  int64
	Total       int64 // -1 when unknown
}

// Finished is emitted once after the last chunk, on success only.
type Finished struct{}

func (Started) isEvent()  {}
func (Progress) isEvent() {}
func (Finished) isEvent() {}
