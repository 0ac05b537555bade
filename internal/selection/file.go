// Package selection models the set of local files chosen for a submission.
//
// A FileHandle is an immutable reference to one file: its name, the content
// type declared for it, and a way to read its bytes. A Selection holds the
// ordered handles for the next submission and is replaced, never extended,
// each time the user picks or drops files.
package selection

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// FileHandle references a single selected file.
type FileHandle struct {
	name        string
	contentType string
	size        int64
	open        func() (io.ReadCloser, error)
}

// New returns a handle whose content is produced by open. An empty
// contentType is kept as is; see FromBytes and FromPath for sniffing.
func New(name, contentType string, size int64, open func() (io.ReadCloser, error)) FileHandle {
	return FileHandle{name: name, contentType: contentType, size: size, open: open}
}

// FromBytes returns a handle over an in-memory copy of data. When
// contentType is empty it is detected from the data.
func FromBytes(name, contentType string, data []byte) FileHandle {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return New(name, contentType, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromPath returns a handle for the file at path, named by its base name.
// The content type comes from the file extension, falling back to sniffing
// the leading bytes.
func FromPath(path string) (FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileHandle{}, fmt.Errorf("selection: %w", err)
	}
	if info.IsDir() {
		return FileHandle{}, fmt.Errorf("selection: %q is a directory", path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return FileHandle{}, fmt.Errorf("selection: failed to detect content type of %q: %w", path, err)
		}
		contentType = mt.String()
	}

	return New(filepath.Base(path), contentType, info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// FromMultipart copies an uploaded form file into memory. The request's
// temporary files may be removed as soon as the handler returns, so the
// bytes are read eagerly.
func FromMultipart(fh *multipart.FileHeader) (FileHandle, error) {
	f, err := fh.Open()
	if err != nil {
		return FileHandle{}, fmt.Errorf("selection: failed to open %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return FileHandle{}, fmt.Errorf("selection: failed to read %q: %w", fh.Filename, err)
	}

	return FromBytes(filepath.Base(fh.Filename), fh.Header.Get("Content-Type"), data), nil
}

func (f FileHandle) Name() string        { return f.name }
func (f FileHandle) ContentType() string { return f.contentType }
func (f FileHandle) Size() int64         { return f.size }

// ReadAll returns the full content of the file.
func (f FileHandle) ReadAll() ([]byte, error) {
	if f.open == nil {
		return nil, fmt.Errorf("selection: %q has no content", f.name)
	}
	rc, err := f.open()
	if err != nil {
		return nil, fmt.Errorf("selection: failed to open %q: %w", f.name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("selection: failed to read %q: %w", f.name, err)
	}
	return data, nil
}
