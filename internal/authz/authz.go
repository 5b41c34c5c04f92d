// Package authz is the boundary to the authorization layer. The engine
// splices the returned row filter into WHERE and uses field rights to pick
// writable attributes; it never interprets permissions itself.
package authz

import (
	"context"
	"regexp"
	"strings"
)

// Mode is the access mode a row filter is requested for.
type Mode string

const (
	Read  Mode = "read"
	Write Mode = "write"
)

// User is the caller on whose behalf a statement runs.
type User struct {
	Name   string
	Groups []string
}

// subjects returns the user name followed by its groups.
func (u User) subjects() []string {
	out := make([]string, 0, 1+len(u.Groups))
	if u.Name != "" {
		out = append(out, u.Name)
	}
	return append(out, u.Groups...)
}

// Authorizer supplies row filters and field rights.
type Authorizer interface {
	// SecurityClause returns an opaque SQL boolean expression restricting
	// the rows the user may see or change. "" means no restriction.
	SecurityClause(ctx context.Context, user User, entity string, mode Mode) (string, error)
	// FieldAccess reports whether the user may read and write a field.
	FieldAccess(ctx context.Context, user User, entity, field string) (read, write bool, err error)
}

// AllowAll grants everything and filters nothing.
type AllowAll struct{}

func (AllowAll) SecurityClause(context.Context, User, string, Mode) (string, error) { return "", nil }

func (AllowAll) FieldAccess(context.Context, User, string, string) (bool, bool, error) {
	return true, true, nil
}

// FieldRights is the read/write pair for one field.
type FieldRights struct {
	Read  bool
	Write bool
}

// Static serves fixed row filters and field rights. Filters are keyed by
// mode then entity; fields by "Entity.field", absent fields being fully
// accessible. Filters may reference the caller as :user.
type Static struct {
	Filters map[Mode]map[string]string
	Fields  map[string]FieldRights
}

func (s Static) SecurityClause(_ context.Context, user User, entity string, mode Mode) (string, error) {
	return expandUser(s.Filters[mode][entity], user), nil
}

func (s Static) FieldAccess(_ context.Context, _ User, entity, field string) (bool, bool, error) {
	r, ok := s.Fields[entity+"."+field]
	if !ok {
		return true, true, nil
	}
	return r.Read, r.Write, nil
}

// userParam matches :user as a whole token, not the start of :username.
var userParam = regexp.MustCompile(`:user\b`)

// expandUser substitutes :user with the user name as a quoted literal.
func expandUser(tmpl string, user User) string {
	if tmpl == "" || !strings.Contains(tmpl, ":user") {
		return tmpl
	}
	return userParam.ReplaceAllLiteralString(tmpl, quote(user.Name))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
