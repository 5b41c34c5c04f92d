package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/config"
	"github.com/roach88/recsql/internal/dao"
	"github.com/roach88/recsql/internal/store"
	"github.com/roach88/recsql/internal/vo"
)

// session is everything one data command needs: configuration, schemas,
// the database when the command touches it, and the calling user.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	schemas   *LoadResult
	store     *store.Store
	authz     authz.Authorizer
	user      authz.User
	formatter *OutputFormatter
}

// openSession loads configuration and schemas. The database is opened
// only when withDB is set; render works offline.
func openSession(opts *RootOptions, cmd *cobra.Command, withDB bool) (*session, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return nil, commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}
	az, err := cfg.Authorizer()
	if err != nil {
		return nil, commandError(formatter, ErrCodeConfig, "invalid authorization settings", err)
	}

	schemas, loadErrs := LoadSchemas(cfg.Schemas, LoadModeFailFast)
	if len(loadErrs) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrs[0], &loadErr) {
			return nil, commandError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return nil, commandError(formatter, ErrCodeGeneric, loadErrs[0].Error(), nil)
	}
	formatter.VerboseLog("Loaded %d entities from %d CUE file(s)", len(schemas.Schemas), schemas.FileCount)

	s := &session{
		cfg:       cfg,
		logger:    logger,
		schemas:   schemas,
		authz:     az,
		user:      authz.User{Name: opts.User, Groups: opts.Groups},
		formatter: formatter,
	}
	if !withDB {
		return s, nil
	}

	d, err := cfg.Dialect()
	if err != nil {
		return nil, commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}
	logger.Debug("opening database", "driver", cfg.Database.Driver, "dialect", d.Name())
	s.store, err = store.Open(cfg.Database.Driver, cfg.Database.DSN, d)
	if err != nil {
		return nil, commandError(formatter, ErrCodeDatabase, "failed to open database", err)
	}
	return s, nil
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

// engine builds the data access engine for one entity.
func (s *session) engine(entity string) (*dao.Engine, *vo.Schema, error) {
	schema, ok := s.schemas.Lookup(entity)
	if !ok {
		return nil, nil, commandError(s.formatter, ErrCodeEntity, fmt.Sprintf("unknown entity %q", entity), nil)
	}
	d, err := s.cfg.Dialect()
	if err != nil {
		return nil, nil, commandError(s.formatter, ErrCodeConfig, "invalid configuration", err)
	}
	e, err := dao.New(schema, d, dao.WithAuthorizer(s.authz), dao.WithLogger(s.logger))
	if err != nil {
		return nil, nil, commandError(s.formatter, ErrCodeEntity, fmt.Sprintf("entity %q", entity), err)
	}
	return e, schema, nil
}

// commandError reports a command-level failure (exit code 2).
func commandError(f *OutputFormatter, code, message string, err error) error {
	details := any(nil)
	if err != nil {
		details = err.Error()
		message = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// engineError reports an engine failure. Programming errors are the
// caller's fault (a bad request); database errors are environmental.
func engineError(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	switch {
	case dao.IsProgrammingError(err):
		code = ErrCodeRequest
	case dao.IsDatabaseError(err):
		code = ErrCodeDatabase
	}
	return commandError(f, code, "request failed", err)
}
