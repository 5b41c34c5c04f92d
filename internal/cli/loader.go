package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recsql/internal/compiler"
	"github.com/roach88/recsql/internal/vo"
)

// LoadMode controls how errors are handled during schema loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the entity schemas loaded from one or more directories.
type LoadResult struct {
	Schemas   []*vo.Schema
	FileCount int // Number of CUE files found
}

// Lookup returns the schema of the named entity.
func (r *LoadResult) Lookup(entity string) (*vo.Schema, bool) {
	for _, s := range r.Schemas {
		if s.Entity == entity {
			return s, true
		}
	}
	return nil, false
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchemas loads and compiles CUE entity declarations from each directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
// A nil result means nothing could be loaded at all.
func LoadSchemas(dirs []string, mode LoadMode) (*LoadResult, []error) {
	if len(dirs) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: "no schema directory configured"}}
	}

	result := &LoadResult{}
	var errs []error
	for _, dir := range dirs {
		dirErrs := loadDir(result, dir, mode)
		errs = append(errs, dirErrs...)
		if len(dirErrs) > 0 && mode == LoadModeFailFast {
			break
		}
	}
	if result.FileCount == 0 {
		return nil, errs
	}
	if len(result.Schemas) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entities found in schemas"})
	}
	return result, errs
}

func loadDir(result *LoadResult, dir string, mode LoadMode) []error {
	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}}
	}
	if err != nil {
		return []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}}
	}
	if !info.IsDir() {
		return []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	result.FileCount += len(cueFiles)

	schemas, compileErrs := compiler.CompileAll(value)
	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			return errs
		}
	}
	result.Schemas = append(result.Schemas, schemas...)
	return errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeRequest  = "E201" // Malformed request file
	ErrCodeEntity   = "E202" // Unknown entity
	ErrCodeDatabase = "E203" // Database failure
	ErrCodeOutcome  = "E204" // Business outcome other than OK
	ErrCodeConfig   = "E205" // Invalid configuration
	ErrCodeScenario = "E206" // Scenario failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "table":
		return compiler.ErrTableMissing
	case field == "attributes":
		return compiler.ErrNoAttributes
	case field == "identity":
		return compiler.ErrIdentityUndeclared
	case field == "type", strings.HasSuffix(field, ".type"), strings.HasSuffix(field, ".search"):
		return compiler.ErrInvalidFieldType
	case field == "on":
		return compiler.ErrInvalidJoin
	default:
		return ErrCodeGeneric
	}
}
