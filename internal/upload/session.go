package upload

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomasbasham/s3apo/internal/selection"
)

var (
	// ErrUploadInProgress is returned when a submission arrives while the
	// session is still uploading the previous one.
	ErrUploadInProgress = errors.New("upload: an upload is already in progress")

	// ErrNoFiles is returned when a submission has nothing selected.
	ErrNoFiles = errors.New("upload: no files selected")
)

// Session holds the state of one form: its credentials, the current file
// selection, the batch of status records and the uploading flag. The
// orchestrator is its only writer; presenters read snapshots.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.RWMutex
	credentials Credentials
	selection   selection.Selection
	batch       Batch
	uploading   bool
	updatedAt   time.Time
}

// NewSession returns an idle session for creds with an empty selection.
func NewSession(creds Credentials) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.New().String(),
		CreatedAt:   now,
		credentials: creds,
		updatedAt:   now,
	}
}

// Selection returns the session's file selection.
func (s *Session) Selection() *selection.Selection {
	return &s.selection
}

// Credentials returns the credentials the next run will use.
func (s *Session) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentials
}

// Snapshot is an immutable view of a session for presenters.
type Snapshot struct {
	ID        string    `json:"id"`
	Bucket    string    `json:"bucket"`
	Region    string    `json:"region"`
	Uploading bool      `json:"uploading"`
	Statuses  []Status  `json:"statuses"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Failed reports whether the batch ended with an error record.
func (s Snapshot) Failed() bool {
	n := len(s.Statuses)
	return n > 0 && s.Statuses[n-1].IsError
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.ID,
		Bucket:    s.credentials.Bucket,
		Region:    s.credentials.Region,
		Uploading: s.uploading,
		Statuses:  s.batch.Records(),
		UpdatedAt: s.updatedAt,
	}
}

// begin validates the submission, clears the batch and raises the
// uploading flag. It returns the inputs the run works from.
func (s *Session) begin() (Credentials, []selection.FileHandle, error) {
	files := s.selection.Files()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uploading {
		return Credentials{}, nil, ErrUploadInProgress
	}
	if err := s.credentials.Validate(); err != nil {
		return Credentials{}, nil, fmt.Errorf("upload: invalid credentials: %w", err)
	}
	if len(files) == 0 {
		return Credentials{}, nil, ErrNoFiles
	}

	s.batch.Reset()
	s.uploading = true
	s.updatedAt = time.Now()
	return s.credentials, files, nil
}

// forgetSecret blanks the secret key once the uploader holds it. A later
// run on the same session needs fresh credentials.
func (s *Session) forgetSecret() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials.SecretKey = ""
}

// idleSince reports when the session last changed, or false while a run is
// in progress.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt, !s.uploading
}

func (s *Session) finish() {
	s.update(func(*Batch) { s.uploading = false })
}

func (s *Session) appendStatus(st Status) {
	s.update(func(b *Batch) { b.Append(st) })
}

func (s *Session) replaceStatus(st Status) {
	s.update(func(b *Batch) { b.Replace(st) })
}

func (s *Session) abortStatus(pending string, st Status) {
	s.update(func(b *Batch) {
		b.dropInFlight(pending)
		b.Append(st)
	})
}

func (s *Session) update(fn func(*Batch)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.batch)
	s.updatedAt = time.Now()
}
