package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/recsql/internal/compiler"
	"github.com/roach88/recsql/internal/config"
	"github.com/roach88/recsql/internal/vo"
)

// ValidationResult is the JSON form of a validate run.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Entities []EntitySummary            `json:"entities,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// EntitySummary describes one valid entity.
type EntitySummary struct {
	Entity     string            `json:"entity"`
	Table      string            `json:"table"`
	Attributes int               `json:"attributes"`
	CodeRefs   map[string]string `json:"coderefs,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schemas-dir...]",
		Short: "Check entity schemas",
		Long: `Compile and check the CUE entity declarations of the given directories,
or of the configured schema directories when none are given.

Every problem is reported, not only the first. Attributes carrying a
coderef are listed with their code table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dirs []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if len(dirs) == 0 {
		cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
		if err != nil {
			return commandError(formatter, ErrCodeConfig, "invalid configuration", err)
		}
		dirs = cfg.Schemas
	}

	loadResult, loadErrors := LoadSchemas(dirs, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return commandError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return commandError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %v", loadResult.FileCount, dirs)

	errs := checkSchemas(loadResult, loadErrors)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return outputValidateSuccess(formatter, loadResult.Schemas)
}

// checkSchemas merges load failures with schema validation problems.
func checkSchemas(result *LoadResult, loadErrors []error) []compiler.ValidationError {
	var errs []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			errs = append(errs, compiler.ValidationError{Field: "load", Message: loadErr.Message, Code: loadErr.Code})
			continue
		}
		errs = append(errs, compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric})
	}
	return append(errs, compiler.ValidateAll(result.Schemas)...)
}

func summarize(schemas []*vo.Schema) []EntitySummary {
	out := make([]EntitySummary, 0, len(schemas))
	for _, s := range schemas {
		sum := EntitySummary{Entity: s.Entity, Table: s.Table, Attributes: len(s.Attributes)}
		for _, a := range s.Attributes {
			if a.CodeRef == "" {
				continue
			}
			if sum.CodeRefs == nil {
				sum.CodeRefs = make(map[string]string)
			}
			sum.CodeRefs[a.Name] = a.CodeRef
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

func outputValidateSuccess(formatter *OutputFormatter, schemas []*vo.Schema) error {
	entities := summarize(schemas)
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Entities: entities})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d entities valid\n", len(entities))
	for _, e := range entities {
		fmt.Fprintf(formatter.Writer, "  %s (%s, %d attributes)\n", e.Entity, e.Table, e.Attributes)
		names := make([]string, 0, len(e.CodeRefs))
		for name := range e.CodeRefs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(formatter.Writer, "    %s -> coderef %s\n", name, e.CodeRefs[name])
		}
	}
	return nil
}

// outputValidationErrors reports every problem; invalid schemas exit 1.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	return failed
}

// ValidateSchemaDirs checks the schemas of dirs without printing anything.
func ValidateSchemaDirs(dirs ...string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadSchemas(dirs, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	return checkSchemas(loadResult, loadErrors), nil
}
