package cli

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/recsql/internal/config"
	"github.com/roach88/recsql/internal/store"
)

//go:embed demo.cue
var demoCUE []byte

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// InitResult is the JSON form of an init run.
type InitResult struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Written  bool   `json:"written"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the demo database and its entity schemas",
		Long: `Create the demo person and address tables in the configured SQLite
database and write their CUE declarations to the first schema directory.

An existing demo.cue is kept unless --force is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing demo.cue")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}
	d, err := cfg.Dialect()
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}

	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, d)
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, "failed to open database", err)
	}
	defer s.Close()
	if err := s.ApplyDemoSchema(cmd.Context()); err != nil {
		return commandError(formatter, ErrCodeDatabase, "failed to create demo tables", err)
	}
	formatter.VerboseLog("Demo tables ready in %s", cfg.Database.DSN)

	path := filepath.Join(cfg.Schemas[0], "demo.cue")
	written, err := writeDemoSchema(path, opts.Force)
	if err != nil {
		return commandError(formatter, ErrCodeWriteFailed, "failed to write schema", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(InitResult{Database: cfg.Database.DSN, Schema: path, Written: written})
	}
	fmt.Fprintf(formatter.Writer, "✓ Demo tables created in %s\n", cfg.Database.DSN)
	if written {
		fmt.Fprintf(formatter.Writer, "✓ Wrote %s\n", path)
	} else {
		fmt.Fprintf(formatter.Writer, "  Kept existing %s\n", path)
	}
	return nil
}

func writeDemoSchema(path string, force bool) (bool, error) {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, demoCUE, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
