package state

// Journal records undo operations for in-memory ledger mutations so that a
// failed call can be rolled back to a previous revision. Entries are replayed
// strictly in reverse order.
type Journal struct {
	entries []func()
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Record appends an undo operation.
func (j *Journal) Record(undo func()) {
	if j == nil || undo == nil {
		return
	}
	j.entries = append(j.entries, undo)
}

// Snapshot returns an identifier for the current revision.
func (j *Journal) Snapshot() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// RevertToSnapshot undoes every mutation recorded after the supplied
// revision.
func (j *Journal) RevertToSnapshot(id int) {
	if j == nil {
		return
	}
	if id < 0 {
		id = 0
	}
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
		j.entries[i] = nil
	}
	if id < len(j.entries) {
		j.entries = j.entries[:id]
	}
}

// Length reports the number of pending undo operations.
func (j *Journal) Length() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// Reset discards all recorded entries, committing the current state.
func (j *Journal) Reset() {
	if j == nil {
		return
	}
	j.entries = j.entries[:0]
}
