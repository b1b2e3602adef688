package index

import "sync/atomic"

// Live holds the snapshot currently served. Readers never block; a rebuild
// installs a new snapshot with Swap and never mutates the one readers hold.
type Live struct {
	current atomic.Pointer[Index]
}

// NewLive returns a holder serving ix (which may be nil).
func NewLive(ix *Index) *Live {
	l := &Live{}
	if ix != nil {
		l.current.Store(ix)
	}
	return l
}

// Load returns the current snapshot, or nil when none is loaded.
func (l *Live) Load() *Index {
	return l.current.Load()
}

// Swap installs ix and returns the previous snapshot.
func (l *Live) Swap(ix *Index) *Index {
	return l.current.Swap(ix)
}
