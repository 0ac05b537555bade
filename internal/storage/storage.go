// Package storage provides an abstraction for writing uploaded files to an
// object store as publicly readable objects. The S3 implementation is the
// production backend; the interface allows alternative implementations for
// testing.
package storage

import (
	"context"
	"io"
)

// Uploader persists a single object to a storage backend.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

type UploadRequest struct {
	// Bucket is the destination bucket name.
	Bucket string

	// Key is the object key within Bucket. Callers use the file name as is.
	Key string

	// Content is the data to be uploaded.
	Content io.Reader

	// ContentLength is the number of bytes in Content. Zero means unknown.
	ContentLength int64

	// ContentType is the MIME type of the content, e.g. "image/png". Empty
	// leaves the decision to the backend.
	ContentType string
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	// Key is the object key within the bucket.
	Key string

	// URL is the public address of the object.
	URL string

	// ETag is the entity tag reported by the backend, if any.
	ETag string
}
