package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/s3apo/internal/logging"
	"github.com/tomasbasham/s3apo/internal/present"
	"github.com/tomasbasham/s3apo/internal/region"
	"github.com/tomasbasham/s3apo/internal/selection"
	"github.com/tomasbasham/s3apo/internal/upload"
)

// Environment variables consulted for flag defaults.
const (
	envAccessKey = "S3APO_ACCESS_KEY"
	envSecretKey = "S3APO_SECRET_KEY"
	envBucket    = "S3APO_BUCKET"
	envRegion    = "S3APO_REGION"
)

// errUploadFailed signals a batch that ended with an error record. The
// record itself has already been printed.
var errUploadFailed = errors.New("upload failed")

type UploadOptions struct {
	files       []selection.FileHandle
	logger      logging.Logger
	newUploader upload.UploaderFunc

	Paths     []string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
	LogLevel  string

	iooption.IOStreams
}

var (
	uploadLong = templates.LongDesc(`
		Upload each FILE, in order, to the bucket as a publicly readable
		object named after the file. Uploading stops at the first failure.

		Credentials may be given as flags or through the S3APO_ACCESS_KEY,
		S3APO_SECRET_KEY, S3APO_BUCKET and S3APO_REGION environment
		variables. When no secret key is given and standard input is a
		terminal it is prompted for.`)

	uploadExample = templates.Examples(`
		# Upload two files to a bucket in Ireland
		s3apo upload --access-key AKIA... --bucket my-bucket a.png b.txt

		# Upload to a bucket in another region
		s3apo upload --bucket my-bucket --region us-west-2 report.pdf`)
)

func NewUploadOptions(streams iooption.IOStreams) *UploadOptions {
	return &UploadOptions{
		IOStreams: streams,
	}
}

func NewUploadCommand(o *UploadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "upload [flags] FILE...",
		DisableFlagsInUseLine: true,
		Short:                 "Upload files as public objects",
		Long:                  uploadLong,
		Example:               uploadExample,
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

	defaultRegion := os.Getenv(envRegion)
	if defaultRegion == "" {
		defaultRegion = region.Default().Code
	}

	flags := cmd.Flags()
	flags.StringVar(&o.AccessKey, "access-key", os.Getenv(envAccessKey), "Access key ID")
	flags.StringVar(&o.SecretKey, "secret-key", os.Getenv(envSecretKey), "Secret access key")
	flags.StringVarP(&o.Bucket, "bucket", "b", os.Getenv(envBucket), "Destination bucket name")
	flags.StringVarP(&o.Region, "region", "r", defaultRegion, "Bucket region, one of the codes listed by s3apo regions")
	flags.StringVar(&o.Endpoint, "endpoint", "", "Custom S3-compatible endpoint URL")
	flags.StringVar(&o.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	return cmd
}

// isTerminal is swapped in tests.
var isTerminal = term.IsTerminal

// readPassword is swapped in tests.
var readPassword = term.ReadPassword

func (o *UploadOptions) Complete(cmd *cobra.Command, args []string) error {
	o.Paths = args

	if o.SecretKey == "" {
		if f, ok := o.In.(*os.File); ok && isTerminal(int(f.Fd())) {
			fmt.Fprint(o.ErrOut, "Secret key: ")
			secret, err := readPassword(int(f.Fd()))
			fmt.Fprintln(o.ErrOut)
			if err != nil {
				return fmt.Errorf("failed to read secret key: %w", err)
			}
			o.SecretKey = strings.TrimSpace(string(secret))
		}
	}

	logger, err := logging.New(o.ErrOut, o.LogLevel)
	if err != nil {
		return err
	}
	o.logger = logger

	if o.newUploader == nil {
		o.newUploader = upload.S3Uploaders(o.Endpoint)
	}
	return nil
}

func (o *UploadOptions) Validate() error {
	if len(o.Paths) == 0 {
		return fmt.Errorf("at least one FILE is required")
	}
	if err := o.credentials().Validate(); err != nil {
		return err
	}

	files := make([]selection.FileHandle, 0, len(o.Paths))
	for _, path := range o.Paths {
		f, err := selection.FromPath(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	o.files = files

	return nil
}

func (o *UploadOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := upload.NewSession(o.credentials())
	sess.Selection().Pick(o.files)

	err := upload.Run(ctx, sess, upload.WorkerOptions{
		NewUploader: o.newUploader,
		Logger:      o.logger,
		// Progress and failures go to ErrOut so Out carries only the
		// uploaded objects.
		Observer: func(s upload.Status) {
			switch {
			case s.IsError:
				_ = present.WriteStatus(o.ErrOut, s)
			case s.Percent() < 100:
				fmt.Fprintln(o.ErrOut, s.Message)
			default:
				_ = present.WriteStatus(o.Out, s)
			}
		},
	})
	if err != nil {
		return err
	}

	if sess.Snapshot().Failed() {
		return errUploadFailed
	}
	return nil
}

func (o *UploadOptions) credentials() upload.Credentials {
	return upload.Credentials{
		AccessKey: o.AccessKey,
		SecretKey: o.SecretKey,
		Bucket:    o.Bucket,
		Region:    o.Region,
	}
}
