package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(`
		Upload files to an S3 bucket as publicly readable objects and report
		the public URL of each one.`)

	rootExamples = templates.Examples(`
		# Upload two files to a bucket in the default region
		s3apo upload --bucket my-bucket a.png b.txt

		# Serve the upload form on port 8080
		s3apo serve`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// S3APOOptions defines the options for the `s3apo` command.
type S3APOOptions struct {
	iooption.IOStreams
}

// NewS3APOOptions provides an initialised S3APOOptions instance.
func NewS3APOOptions(streams iooption.IOStreams) *S3APOOptions {
	return &S3APOOptions{
		IOStreams: streams,
	}
}

// NewRootCommand creates the `s3apo` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewS3APOOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `s3apo` command and its nested
// children.
func NewRootCommandWithArgs(o *S3APOOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "s3apo [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Upload files to S3 as public objects",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	cmd.AddCommand(NewUploadCommand(NewUploadOptions(o.IOStreams)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o.IOStreams)))
	cmd.AddCommand(NewRegionsCommand(o.IOStreams))

	// The global normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
