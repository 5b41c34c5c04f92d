package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recsql/internal/dao"
	"github.com/roach88/recsql/internal/outcome"
	"github.com/roach88/recsql/internal/request"
	"github.com/roach88/recsql/internal/vo"
)

// OutcomeResult is the JSON form of an engine outcome.
type OutcomeResult struct {
	Status  string           `json:"status"`
	Count   int64            `json:"count"`
	ID      any              `json:"id,omitempty"`
	Records []map[string]any `json:"records,omitempty"`
}

// StatementResult is the JSON form of a rendered statement.
type StatementResult struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

func newOutcomeResult(o outcome.Outcome) OutcomeResult {
	r := OutcomeResult{Status: o.Status().String(), Count: o.Count(), ID: o.ID()}
	if rec := o.Record(); rec != nil {
		r.Records = append(r.Records, rec.Map())
	}
	for _, rec := range o.Records() {
		r.Records = append(r.Records, rec.Map())
	}
	return r
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render <request.yaml>",
		Short: "Print the SELECT a list request would run",
		Long: `Render the list statement for a request without touching the database.

The configured dialect decides pagination, date truncation, escaping and
placeholders. Security clauses of the configured authorizer are included.

Example:
  recsql render --dialect oracle --user alice people.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(rootOpts, args[0], cmd)
		},
	}
}

func runRender(opts *RootOptions, path string, cmd *cobra.Command) error {
	s, req, e, schema, err := prepare(opts, cmd, path, false)
	if err != nil {
		return err
	}
	defer s.Close()

	criteria, err := req.CriteriaRecord(schema)
	if err != nil {
		return commandError(s.formatter, ErrCodeRequest, "invalid criteria", err)
	}
	st, err := e.RenderList(cmd.Context(), s.user, criteria, req.Params)
	if err != nil {
		return engineError(s.formatter, err)
	}

	if s.formatter.Format == "json" {
		return s.formatter.Success(StatementResult{SQL: st.SQL, Args: st.Args})
	}
	fmt.Fprintln(s.formatter.Writer, st.SQL)
	for i, arg := range st.Args {
		fmt.Fprintf(s.formatter.Writer, "  %d: %T %v\n", i+1, arg, arg)
	}
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <request.yaml>",
		Short: "List the records matching a request",
		Long: `List the records matching the criteria and parameters of a request.

Example:
  recsql list people.yaml
  recsql list --format json --user alice people.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(rootOpts, args[0], cmd, func(ctx context.Context, s *session, e *dao.Engine, schema *vo.Schema, req *request.Request) (outcome.Outcome, error) {
				criteria, err := req.CriteriaRecord(schema)
				if err != nil {
					return outcome.Outcome{}, commandError(s.formatter, ErrCodeRequest, "invalid criteria", err)
				}
				return e.GetList(ctx, s.store.DB(), s.user, criteria, req.Params)
			})
		},
	}
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count <request.yaml>",
		Short:         "Count the records matching a request",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(rootOpts, args[0], cmd, func(ctx context.Context, s *session, e *dao.Engine, schema *vo.Schema, req *request.Request) (outcome.Outcome, error) {
				criteria, err := req.CriteriaRecord(schema)
				if err != nil {
					return outcome.Outcome{}, commandError(s.formatter, ErrCodeRequest, "invalid criteria", err)
				}
				n, err := e.Count(ctx, s.store.DB(), s.user, criteria, req.Params)
				if err != nil {
					return outcome.Outcome{}, err
				}
				return outcome.WithCount(outcome.OK, n), nil
			})
		},
	}
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <request.yaml>",
		Short: "Insert the values of a request",
		Long: `Insert a record built from the values of a request and print its identity.

Identity and version are assigned by the engine; values the user may not
write are ignored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(rootOpts, args[0], cmd, func(ctx context.Context, s *session, e *dao.Engine, schema *vo.Schema, req *request.Request) (outcome.Outcome, error) {
				rec, err := req.ValuesRecord(schema)
				if err != nil {
					return outcome.Outcome{}, commandError(s.formatter, ErrCodeRequest, "invalid values", err)
				}
				return inTx(ctx, s, func(q dao.Querier) (outcome.Outcome, error) {
					return e.Create(ctx, q, s.user, rec)
				})
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <request.yaml>",
		Short: "Update a record if its version is unchanged",
		Long: `Write the values of a request to the record with the request's id,
provided its stored version still equals the request's version.

Exit code 1 reports NOT_FOUND, CHANGED_TIMESTAMP, NO_RIGHTS or NOTHING_TODO.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(rootOpts, args[0], cmd, func(ctx context.Context, s *session, e *dao.Engine, _ *vo.Schema, req *request.Request) (outcome.Outcome, error) {
				return inTx(ctx, s, func(q dao.Querier) (outcome.Outcome, error) {
					return e.Update(ctx, q, s.user, req.Values, req.ID, req.Version)
				})
			})
		},
	}
}

// KeyOptions holds flags for commands addressing one record.
type KeyOptions struct {
	*RootOptions
	Version string
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <entity> <id>",
		Short:         "Print one record",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyed(rootOpts, args[0], cmd, func(ctx context.Context, s *session, e *dao.Engine) (outcome.Outcome, error) {
				return e.GetRecord(ctx, s.store.DB(), s.user, args[1])
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <entity> <id> --version <v>",
		Short: "Delete a record if its version is unchanged",
		Example: `  recsql delete Person 4 --version 1
  recsql delete Address 0190a8b2-... --version "2007-12-23 09:01:06"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyed(rootOpts, args[0], cmd, func(ctx context.Context, s *session, e *dao.Engine) (outcome.Outcome, error) {
				var version any
				if cmd.Flags().Changed("version") {
					version = opts.Version
				}
				return inTx(ctx, s, func(q dao.Querier) (outcome.Outcome, error) {
					return e.Delete(ctx, q, s.user, args[1], version)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Version, "version", "", "expected version of the record")

	return cmd
}

type requestFunc func(ctx context.Context, s *session, e *dao.Engine, schema *vo.Schema, req *request.Request) (outcome.Outcome, error)

// prepare loads the request, the session and the entity's engine.
func prepare(opts *RootOptions, cmd *cobra.Command, path string, withDB bool) (*session, *request.Request, *dao.Engine, *vo.Schema, error) {
	s, err := openSession(opts, cmd, withDB)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	req, err := request.Load(path)
	if err != nil {
		s.Close()
		return nil, nil, nil, nil, commandError(s.formatter, ErrCodeRequest, "invalid request", err)
	}
	e, schema, err := s.engine(req.Entity)
	if err != nil {
		s.Close()
		return nil, nil, nil, nil, err
	}
	return s, req, e, schema, nil
}

func runRequest(opts *RootOptions, path string, cmd *cobra.Command, fn requestFunc) error {
	s, req, e, schema, err := prepare(opts, cmd, path, true)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := fn(cmd.Context(), s, e, schema, req)
	if err != nil {
		return reportError(s.formatter, err)
	}
	return reportOutcome(s.formatter, out)
}

func runKeyed(opts *RootOptions, entity string, cmd *cobra.Command, fn func(context.Context, *session, *dao.Engine) (outcome.Outcome, error)) error {
	s, err := openSession(opts, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	e, _, err := s.engine(entity)
	if err != nil {
		return err
	}
	out, err := fn(cmd.Context(), s, e)
	if err != nil {
		return reportError(s.formatter, err)
	}
	return reportOutcome(s.formatter, out)
}

// inTx runs a write in its own transaction, committed only for OK.
func inTx(ctx context.Context, s *session, fn func(dao.Querier) (outcome.Outcome, error)) (outcome.Outcome, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return outcome.Outcome{}, err
	}
	defer tx.Close()

	out, err := fn(tx)
	if err != nil || !out.OK() {
		return out, err
	}
	if err := tx.Commit(); err != nil {
		return outcome.Outcome{}, err
	}
	return out, nil
}

func reportError(f *OutputFormatter, err error) error {
	if _, ok := err.(*ExitError); ok {
		return err
	}
	return engineError(f, err)
}

// reportOutcome prints an outcome. Anything but OK exits with code 1.
func reportOutcome(f *OutputFormatter, o outcome.Outcome) error {
	result := newOutcomeResult(o)
	if !o.OK() {
		_ = f.Error(ErrCodeOutcome, result.Status, result)
		return NewExitError(ExitFailure, result.Status)
	}
	if f.Format == "json" {
		return f.Success(result)
	}

	if rec := o.Record(); rec != nil {
		fmt.Fprintln(f.Writer, rec)
		return nil
	}
	if recs := o.Records(); recs != nil {
		for _, rec := range recs {
			fmt.Fprintln(f.Writer, rec)
		}
		fmt.Fprintf(f.Writer, "%d record(s)\n", len(recs))
		return nil
	}
	fmt.Fprintln(f.Writer, o)
	return nil
}
