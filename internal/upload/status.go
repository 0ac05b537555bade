package upload

// ErrorKey is the file name under which the batch-level error is recorded.
const ErrorKey = "error"

// Status describes the latest known state of one file in a batch, or the
// batch-level failure when FileName is ErrorKey.
type Status struct {
	FileName string `json:"fileName"`
	Message  string `json:"message"`
	URL      string `json:"url,omitempty"`
	IsError  bool   `json:"isError,omitempty"`

	// Progress is 0 while the put is in flight and 100 once it succeeded. It
	// is nil on error records.
	Progress *int `json:"progress,omitempty"`
}

// HasProgress reports whether a progress bar should be shown for s.
func (s Status) HasProgress() bool {
	return s.Progress != nil && !s.IsError
}

// Percent returns the progress value, or 0 when unset.
func (s Status) Percent() int {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}

func progress(p int) *int {
	return &p
}

// Batch is the ordered list of status records for one submission.
type Batch struct {
	records []Status
}

// Append adds s to the end of the batch.
func (b *Batch) Append(s Status) {
	b.records = append(b.records, s)
}

// Replace removes every record for s.FileName and appends s.
func (b *Batch) Replace(s Status) {
	kept := b.records[:0]
	for _, r := range b.records {
		if r.FileName != s.FileName {
			kept = append(kept, r)
		}
	}
	b.records = append(kept, s)
}

// dropInFlight removes the trailing record when it is the in-flight record
// for fileName.
func (b *Batch) dropInFlight(fileName string) {
	n := len(b.records)
	if n == 0 || fileName == "" {
		return
	}
	last := b.records[n-1]
	if last.FileName == fileName && !last.IsError && last.Percent() < 100 {
		b.records = b.records[:n-1]
	}
}

// Reset empties the batch.
func (b *Batch) Reset() {
	b.records = nil
}

// Records returns a copy of the batch.
func (b *Batch) Records() []Status {
	out := make([]Status, len(b.records))
	copy(out, b.records)
	return out
}
