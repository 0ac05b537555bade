package selection

import "sync"

// Selection is the ordered list of files queued for the next submission.
type Selection struct {
	mu    sync.RWMutex
	files []FileHandle
}

// Pick replaces the selection with files, as a file picker does. An empty
// pick clears the selection.
func (s *Selection) Pick(files []FileHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append([]FileHandle(nil), files...)
}

// Drop replaces the selection with files when at least one file was
// dropped, and reports whether it did. An empty drop leaves the selection
// untouched.
func (s *Selection) Drop(files []FileHandle) bool {
	if len(files) == 0 {
		return false
	}
	s.Pick(files)
	return true
}

// Files returns the current selection in order.
func (s *Selection) Files() []FileHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FileHandle(nil), s.files...)
}

func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
