package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/s3apo/internal/logging"
	"github.com/tomasbasham/s3apo/internal/server"
	"github.com/tomasbasham/s3apo/internal/upload"
)

type ServeOptions struct {
	logger logging.Logger

	Port          int
	Endpoint      string
	MaxUploadSize int64
	LogLevel      string

	iooption.IOStreams
}

var (
	serveLong = templates.LongDesc(`
		Start the s3apo HTTP server. The form at / collects credentials and
		files and uploads them when submitted; the same submission is
		available as a JSON API under /api/batches.`)

	serveExample = templates.Examples(`
		# Start on the default port
		s3apo serve

		# Start on a custom port against a local MinIO
		s3apo serve --port 9090 --endpoint http://127.0.0.1:9000`)
)

func NewServeOptions(streams iooption.IOStreams) *ServeOptions {
	return &ServeOptions{
		IOStreams: streams,
	}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the upload form HTTP server",
		Long:    serveLong,
		Example: serveExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&o.Port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&o.Endpoint, "endpoint", "", "Custom S3-compatible endpoint URL")
	cmd.Flags().Int64Var(&o.MaxUploadSize, "max-upload-size", server.DefaultMaxUploadSize, "Largest accepted submission in bytes")
	cmd.Flags().StringVar(&o.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(o.ErrOut, o.LogLevel)
	if err != nil {
		return err
	}
	o.logger = logger
	return nil
}

func (o *ServeOptions) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	if o.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(upload.NewMemoryStore(), server.Options{
		NewUploader:   upload.S3Uploaders(o.Endpoint),
		Logger:        o.logger,
		MaxUploadSize: o.MaxUploadSize,
	})

	addr := fmt.Sprintf(":%d", o.Port)
	return srv.ListenAndServe(ctx, addr)
}
