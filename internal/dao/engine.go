package dao

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/dialect"
	"github.com/roach88/recsql/internal/vo"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Engine runs statements for one entity. It is safe for concurrent use:
// every call works only on its arguments.
type Engine struct {
	schema  *vo.Schema
	dialect dialect.Dialect
	authz   authz.Authorizer
	ids     IdentityGenerator
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuthorizer sets the authorization collaborator (default AllowAll).
func WithAuthorizer(a authz.Authorizer) Option {
	return func(e *Engine) { e.authz = a }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIdentityGenerator sets the generator for STRING identities
// (default UUIDv7Generator).
func WithIdentityGenerator(g IdentityGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// New validates the schema and returns an engine bound to it.
func New(schema *vo.Schema, d dialect.Dialect, opts ...Option) (*Engine, error) {
	if schema == nil {
		return nil, fmt.Errorf("dao: nil schema")
	}
	if d == nil {
		return nil, fmt.Errorf("dao: %s: nil dialect", schema.Entity)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("dao: %w", err)
	}
	e := &Engine{
		schema:  schema,
		dialect: d,
		authz:   authz.AllowAll{},
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Schema returns the entity schema.
func (e *Engine) Schema() *vo.Schema { return e.schema }

// Dialect returns the engine's dialect.
func (e *Engine) Dialect() dialect.Dialect { return e.dialect }

func (e *Engine) securityClause(ctx context.Context, user authz.User, mode authz.Mode) (string, error) {
	c, err := e.authz.SecurityClause(ctx, user, e.schema.Entity, mode)
	if err != nil {
		return "", fmt.Errorf("security clause: %w", err)
	}
	return strings.TrimSpace(c), nil
}

func (e *Engine) logExec(op, query string, nargs int) {
	e.logger.Debug("execute",
		"entity", e.schema.Entity,
		"op", op,
		"sql", query,
		"args", nargs,
	)
}

func (e *Engine) logOutcome(op string, status fmt.Stringer, id any) {
	e.logger.Info("outcome",
		"entity", e.schema.Entity,
		"op", op,
		"status", status.String(),
		"id", id,
	)
}
