// Package server provides the HTTP surface of s3apo: the upload form and a
// small JSON API over the same orchestrator.
//
// Endpoints:
//
//	GET  /                   — the upload form
//	POST /upload             — submit the form; responds once the batch is done
//	POST /api/batches        — submit a batch; returns its session ID immediately
//	GET  /api/batches/{id}   — poll a batch's status records
//	GET  /api/regions        — list the supported regions
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/tomasbasham/s3apo/internal/logging"
	"github.com/tomasbasham/s3apo/internal/present"
	"github.com/tomasbasham/s3apo/internal/region"
	"github.com/tomasbasham/s3apo/internal/selection"
	"github.com/tomasbasham/s3apo/internal/upload"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMaxUploadSize bounds the body of a single submission.
const DefaultMaxUploadSize = 512 << 20

// Options configures a Server.
type Options struct {
	NewUploader upload.UploaderFunc
	Logger      logging.Logger

	// MaxUploadSize is the largest request body accepted, in bytes.
	MaxUploadSize int64
}

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	store       upload.Store
	newUploader upload.UploaderFunc
	logger      logging.Logger
	maxUpload   int64
	mux         *http.ServeMux
}

// New creates a Server wired to the given session store.
func New(store upload.Store, opts Options) *Server {
	s := &Server{
		store:       store,
		newUploader: opts.NewUploader,
		logger:      opts.Logger,
		maxUpload:   opts.MaxUploadSize,
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadSize
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /{$}", s.handleForm)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/batches", s.handleCreateBatch)
	s.mux.HandleFunc("GET /api/batches/{id}", s.handleGetBatch)
	s.mux.HandleFunc("GET /api/regions", s.handleRegions)

	return s
}

// Handler exposes the routes for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info(gctx, "server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) runOptions() upload.WorkerOptions {
	return upload.WorkerOptions{
		NewUploader: s.newUploader,
		Logger:      s.logger,
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, http.StatusOK, present.NewPage())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sub, err := s.parseSubmission(w, r)
	creds := sub.creds

	page := present.NewPage()
	page.AccessKey = creds.AccessKey
	page.Bucket = creds.Bucket
	if creds.Region != "" {
		page.Region = creds.Region
	}
	if err != nil {
		page.Error = err.Error()
		s.writePage(w, http.StatusBadRequest, page)
		return
	}

	// Form sessions are not stored; only API batches are polled.
	sess := upload.NewSession(creds)
	sub.selectInto(sess.Selection())

	// The form waits for the whole batch. A dropped connection does not
	// cancel the uploads.
	if err := upload.Run(context.WithoutCancel(r.Context()), sess, s.runOptions()); err != nil {
		page.Error = err.Error()
		s.writePage(w, http.StatusBadRequest, page)
		return
	}

	page.Statuses = sess.Snapshot().Statuses
	s.writePage(w, http.StatusOK, page)
}

// createBatchResponse is returned immediately from POST /api/batches.
type createBatchResponse struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	sub, err := s.parseSubmission(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.store.Create(sub.creds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session: "+err.Error())
		return
	}
	sub.selectInto(sess.Selection())

	// Run the batch in the background. The request context is not used for
	// cancellation; a submitted batch always runs to completion.
	ctx := context.WithoutCancel(r.Context())
	s.logger.Info(ctx, "batch accepted", "session", sess.ID, "files", sess.Selection().Len(), "source", sub.source)
	go func() {
		if err := upload.Run(ctx, sess, s.runOptions()); err != nil {
			s.logger.Warn(ctx, "batch rejected", "session", sess.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, createBatchResponse{
		ID:       sess.ID,
		Location: "/api/batches/" + sess.ID,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "batch id is required")
		return
	}

	sess, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("batch %q not found", id))
		return
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, region.All())
}

// Selection sources a submission may name in its "source" field.
const (
	sourcePicker = "picker"
	sourceDrop   = "drop"
)

// submission is a parsed form post.
type submission struct {
	creds  upload.Credentials
	files  []selection.FileHandle
	source string
}

// selectInto hands the submitted files to sel the way their source does:
// a drop replaces the selection only when it carries files, a pick always
// replaces it.
func (sub submission) selectInto(sel *selection.Selection) {
	if sub.source == sourceDrop {
		sel.Drop(sub.files)
		return
	}
	sel.Pick(sub.files)
}

// parseSubmission reads the form fields shared by both submission routes.
// The credentials parsed so far are returned even when err is non-nil so
// the form can be re-rendered with them.
func (s *Server) parseSubmission(w http.ResponseWriter, r *http.Request) (submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return submission{}, fmt.Errorf("invalid form: %w", err)
	}

	sub := submission{
		creds: upload.Credentials{
			AccessKey: r.FormValue("accessKey"),
			SecretKey: r.FormValue("secretKey"),
			Bucket:    r.FormValue("bucketName"),
			Region:    r.FormValue("region"),
		},
		source: r.FormValue("source"),
	}
	switch sub.source {
	case "":
		sub.source = sourcePicker
	case sourcePicker, sourceDrop:
	default:
		return sub, fmt.Errorf("unknown file source %q", sub.source)
	}

	if err := sub.creds.Validate(); err != nil {
		return sub, err
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return sub, upload.ErrNoFiles
	}

	sub.files = make([]selection.FileHandle, 0, len(headers))
	for _, fh := range headers {
		f, err := selection.FromMultipart(fh)
		if err != nil {
			return sub, err
		}
		sub.files = append(sub.files, f)
	}
	return sub, nil
}

func (s *Server) writePage(w http.ResponseWriter, status int, p present.Page) {
	var buf bytes.Buffer
	if err := present.WriteHTML(&buf, p); err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
