// Package upload provides the orchestration of a batch upload. A run moves a
// session through a linear lifecycle:
//
//	idle → uploading → idle
//
// Inside a run each selected file is uploaded in order, one request at a
// time. The first failure ends the run: files after it are not attempted
// and a single error record closes the batch.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"
	jsoniter "github.com/json-iterator/go"

	"github.com/tomasbasham/s3apo/internal/logging"
	"github.com/tomasbasham/s3apo/internal/selection"
	"github.com/tomasbasham/s3apo/internal/storage"
)

// UploaderFunc builds the uploader a run writes through.
type UploaderFunc func(ctx context.Context, creds Credentials) (storage.Uploader, error)

// S3Uploaders returns an UploaderFunc backed by S3. endpoint is optional.
func S3Uploaders(endpoint string) UploaderFunc {
	return func(ctx context.Context, creds Credentials) (storage.Uploader, error) {
		return storage.NewS3Uploader(ctx, storage.S3Options{
			AccessKey: creds.AccessKey,
			SecretKey: creds.SecretKey,
			Region:    creds.Region,
			Endpoint:  endpoint,
		})
	}
}

// WorkerOptions configures a run.
type WorkerOptions struct {
	NewUploader UploaderFunc
	Logger      logging.Logger

	// Observer, when set, receives every record written to the batch in the
	// order it was written.
	Observer func(Status)
}

// Run uploads the session's selection to its bucket.
//
// Run returns an error only when the submission is rejected before any
// upload starts: a run already in progress, invalid credentials or an empty
// selection. Transfer failures are recorded in the batch, never returned.
// Once a run starts, the session gives up its selected files when it ends
// and its secret key as soon as the uploader is built.
func Run(ctx context.Context, sess *Session, opts WorkerOptions) error {
	creds, files, err := sess.begin()
	if err != nil {
		return err
	}
	defer sess.finish()
	// The selected bytes are released on every path out of the run.
	defer sess.Selection().Pick(nil)

	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("session", sess.ID, "bucket", creds.Bucket, "region", creds.Region)
	log.Info(ctx, "upload started", "files", len(files))

	w := &worker{sess: sess, creds: creds, log: log, observer: opts.Observer}

	newUploader := opts.NewUploader
	if newUploader == nil {
		newUploader = S3Uploaders("")
	}
	uploader, err := newUploader(ctx, creds)
	sess.forgetSecret()
	w.creds.SecretKey = ""
	if err != nil {
		w.fail(ctx, fmt.Errorf("upload: failed to create uploader: %w", err), "")
		return nil
	}

	for _, f := range files {
		if err := w.upload(ctx, uploader, f); err != nil {
			w.fail(ctx, err, f.Name())
			return nil
		}
	}

	log.Info(ctx, "upload finished", "files", len(files))
	return nil
}

type worker struct {
	sess     *Session
	creds    Credentials
	log      logging.Logger
	observer func(Status)
}

func (w *worker) upload(ctx context.Context, uploader storage.Uploader, f selection.FileHandle) error {
	name := f.Name()
	w.emit(w.sess.appendStatus, Status{
		FileName: name,
		Message:  fmt.Sprintf("Uploading %s...", name),
		Progress: progress(0),
	})

	start := time.Now()
	data, err := f.ReadAll()
	if err != nil {
		return err
	}

	res, err := uploader.Upload(ctx, &storage.UploadRequest{
		Bucket:        w.creds.Bucket,
		Key:           name,
		Content:       bytes.NewReader(data),
		ContentLength: int64(len(data)),
		ContentType:   f.ContentType(),
	})
	if err != nil {
		return err
	}

	url := res.URL
	if url == "" {
		url = storage.ObjectURL(w.creds.Bucket, w.creds.Region, name)
	}
	w.emit(w.sess.replaceStatus, Status{
		FileName: name,
		Message:  fmt.Sprintf("%s uploaded successfully", name),
		URL:      url,
		Progress: progress(100),
	})
	w.log.Info(ctx, "file uploaded", "file", name, "bytes", len(data), "content_type", f.ContentType(), "etag", res.ETag, "duration", time.Since(start))
	return nil
}

// fail closes the batch with the error record. The in-flight record of the
// file being uploaded, if any, is withdrawn so only completed files and the
// error remain.
func (w *worker) fail(ctx context.Context, err error, pending string) {
	w.log.Error(ctx, "upload failed", "file", pending, "error", err)
	w.emit(func(st Status) { w.sess.abortStatus(pending, st) }, Status{
		FileName: ErrorKey,
		Message:  "Error: " + Describe(err),
		IsError:  true,
	})
}

func (w *worker) emit(write func(Status), st Status) {
	write(st)
	if w.observer != nil {
		w.observer(st)
	}
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Describe turns err into the text shown to the user. Service errors are
// reduced to their message, or their code when the service sent no
// message; storage wrappers are peeled so only the cause remains.
func Describe(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.ErrorMessage(); msg != "" {
			return msg
		}
		if code := apiErr.ErrorCode(); code != "" {
			return code
		}
	}

	var storageErr *storage.Error
	if errors.As(err, &storageErr) && storageErr.Err != nil {
		err = storageErr.Err
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	b, jerr := json.Marshal(err)
	if jerr != nil {
		return fmt.Sprintf("%#v", err)
	}
	return string(b)
}
