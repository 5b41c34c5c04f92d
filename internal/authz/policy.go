package authz

import (
	"context"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
)

//go:embed model.conf
var defaultModel string

// Policy checks field rights with a casbin enforcer. Objects are
// "Entity.field" (keyMatch patterns such as "Person.*" apply), actions are
// read and write, and subjects are the user name and its groups.
type Policy struct {
	enforcer *casbin.Enforcer
	filters  map[Mode]map[string]string
}

// NewPolicy builds a Policy from a casbin model (the built-in model when
// empty) and CSV policy lines:
//
//	p, editors, Person.*, write
//	p, alice, Person.name, read
//	g, alice, editors
func NewPolicy(modelText, policyCSV string) (*Policy, error) {
	if strings.TrimSpace(modelText) == "" {
		modelText = defaultModel
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}

	r := csv.NewReader(strings.NewReader(policyCSV))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'
	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("authz policy: %w", err)
	}
	for i, line := range lines {
		if len(line) < 2 {
			return nil, fmt.Errorf("authz policy line %d: too short", i+1)
		}
		rule := make([]any, 0, len(line)-1)
		for _, f := range line[1:] {
			rule = append(rule, strings.TrimSpace(f))
		}
		switch strings.TrimSpace(line[0]) {
		case "p":
			_, err = e.AddPolicy(rule...)
		case "g":
			_, err = e.AddGroupingPolicy(rule...)
		default:
			err = fmt.Errorf("unknown rule type %q", line[0])
		}
		if err != nil {
			return nil, fmt.Errorf("authz policy line %d: %w", i+1, err)
		}
	}
	return &Policy{enforcer: e, filters: map[Mode]map[string]string{}}, nil
}

// WithFilter registers the row filter for an entity and mode.
func (p *Policy) WithFilter(mode Mode, entity, clause string) *Policy {
	if p.filters[mode] == nil {
		p.filters[mode] = map[string]string{}
	}
	p.filters[mode][entity] = clause
	return p
}

func (p *Policy) SecurityClause(_ context.Context, user User, entity string, mode Mode) (string, error) {
	return expandUser(p.filters[mode][entity], user), nil
}

func (p *Policy) FieldAccess(_ context.Context, user User, entity, field string) (bool, bool, error) {
	obj := entity + "." + field
	read, err := p.allowed(user, obj, Read)
	if err != nil {
		return false, false, err
	}
	write, err := p.allowed(user, obj, Write)
	if err != nil {
		return false, false, err
	}
	// Write implies read.
	return read || write, write, nil
}

func (p *Policy) allowed(user User, obj string, mode Mode) (bool, error) {
	for _, sub := range user.subjects() {
		ok, err := p.enforcer.Enforce(sub, obj, string(mode))
		if err != nil {
			return false, fmt.Errorf("authz enforce %s %s %s: %w", sub, obj, mode, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
