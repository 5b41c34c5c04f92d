// Package request reads engine calls (criteria, parameters, values) from YAML.
package request

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/params"
	"github.com/roach88/recsql/internal/vo"
)

// Request is one engine call read from a YAML file:
//
//	entity: Person
//	criteria:
//	  name: to                         # default search of the attribute
//	  score:                           # conditions ANDed
//	    - {op: BIGGER_EQU, value: 3}
//	    - {op: SMALLER, value: 15}
//	  born:
//	    or:                            # conditions ORed
//	      - {op: IS_NULL}
//	      - {op: BIGGER_EQU, value: 2007-12-23}
//	  owner: {op: SQL_FUNCT, function: LOWER, value: alice}
//	params:                            # in order; the last repeat wins
//	  ATTRIBUTES: [id, name, born]
//	  SORT_KEY: name
//	  ROWNUM_END: 20
//	values: {name: Zed}                # create and update
//	id: 2                              # update
//	version: 1                         # update
type Request struct {
	Entity   string
	Criteria map[string]any // attribute name -> scalar or clause.Ops
	Order    []string       // criteria attribute names in file order
	Params   *params.Params
	Values   map[string]any
	ID       any
	Version  any
}

type rawRequest struct {
	Entity   string         `yaml:"entity"`
	Criteria yaml.Node      `yaml:"criteria"`
	Params   yaml.Node      `yaml:"params"`
	Values   map[string]any `yaml:"values"`
	ID       any            `yaml:"id"`
	Version  any            `yaml:"version"`
}

type rawCond struct {
	Op       string `yaml:"op"`
	Value    any    `yaml:"value"`
	Function string `yaml:"function"`
}

// Load reads and parses a request file. Unknown top-level fields
// are rejected.
func Load(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	return Parse(data)
}

// Parse parses request YAML.
func Parse(data []byte) (*Request, error) {
	var raw rawRequest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw.Entity == "" {
		return nil, fmt.Errorf("entity is required")
	}

	req := &Request{
		Entity:   raw.Entity,
		Criteria: make(map[string]any),
		Params:   params.New(),
		Values:   raw.Values,
		ID:       raw.ID,
		Version:  raw.Version,
	}
	if err := req.parseCriteria(&raw.Criteria); err != nil {
		return nil, err
	}
	if err := req.parseParams(&raw.Params); err != nil {
		return nil, err
	}
	return req, nil
}

// FromNode parses a request embedded in a larger YAML document, with the
// same strictness as Parse.
func FromNode(n *yaml.Node) (*Request, error) {
	data, err := yaml.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return Parse(data)
}

func (r *Request) parseCriteria(n *yaml.Node) error {
	if n.Kind == 0 {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: criteria must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		v, err := parseCriterion(n.Content[i+1])
		if err != nil {
			return fmt.Errorf("criteria.%s: %w", name, err)
		}
		if _, dup := r.Criteria[name]; !dup {
			r.Order = append(r.Order, name)
		}
		r.Criteria[name] = v
	}
	return nil
}

func parseCriterion(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case yaml.SequenceNode:
		return parseConds(n)
	case yaml.MappingNode:
		if len(n.Content) == 2 && n.Content[0].Value == "or" {
			conds, err := parseConds(n.Content[1])
			if err != nil {
				return nil, err
			}
			return clause.OrGroup(conds...), nil
		}
		c, err := parseCond(n)
		if err != nil {
			return nil, err
		}
		return clause.Ops{c}, nil
	}
	return nil, fmt.Errorf("line %d: unsupported criterion", n.Line)
}

func parseConds(n *yaml.Node) (clause.Ops, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: want a list of conditions", n.Line)
	}
	ops := make(clause.Ops, 0, len(n.Content))
	for _, item := range n.Content {
		c, err := parseCond(item)
		if err != nil {
			return nil, err
		}
		ops = append(ops, c)
	}
	return ops, nil
}

func parseCond(n *yaml.Node) (clause.Cond, error) {
	var raw rawCond
	if err := n.Decode(&raw); err != nil {
		return clause.Cond{}, fmt.Errorf("line %d: %w", n.Line, err)
	}
	op, err := clause.ParseOperator(raw.Op)
	if err != nil {
		return clause.Cond{}, fmt.Errorf("line %d: %w", n.Line, err)
	}
	switch op {
	case clause.SQLFunct, clause.SQLFunctFullLike:
		return clause.C(op, clause.Funct{Name: raw.Function, Value: raw.Value}), nil
	case clause.Or:
		return clause.Cond{}, fmt.Errorf("line %d: use an or: list instead of op: OR", n.Line)
	}
	return clause.C(op, raw.Value), nil
}

func (r *Request) parseParams(n *yaml.Node) error {
	if n.Kind == 0 {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: params must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, err := params.ParseName(n.Content[i].Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Content[i].Line, err)
		}
		value := n.Content[i+1]
		if name == params.Joins {
			var joins []struct {
				Table string `yaml:"table"`
				On    string `yaml:"on"`
			}
			if err := value.Decode(&joins); err != nil {
				return fmt.Errorf("params.%s: %w", name, err)
			}
			list := make([]vo.Join, len(joins))
			for j, join := range joins {
				list[j] = vo.Join{Table: join.Table, On: join.On}
			}
			r.Params.Set(name, list)
			continue
		}
		var v any
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("params.%s: %w", name, err)
		}
		r.Params.Set(name, v)
	}
	return nil
}

// CriteriaRecord binds the criteria to the schema. Condition values are
// coerced to the attribute type so dates and numbers written as YAML
// strings compare correctly.
func (r *Request) CriteriaRecord(s *vo.Schema) (*vo.Record, error) {
	rec := vo.NewRecord(s)
	for _, name := range r.Order {
		a, ok := s.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", s.Entity, name, vo.ErrUnknownAttribute)
		}
		v, err := coerceCriterion(a, r.Criteria[name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Entity, name, err)
		}
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func coerceCriterion(a vo.Attribute, v any) (any, error) {
	ops, ok := v.(clause.Ops)
	if !ok {
		return v, nil
	}
	out := make(clause.Ops, len(ops))
	for i, c := range ops {
		switch c.Op {
		case clause.IsNull, clause.SQLFunct, clause.SQLFunctFullLike:
		case clause.Or:
			nested, err := coerceCriterion(a, c.Value)
			if err != nil {
				return nil, err
			}
			c.Value = nested
		default:
			coerced, err := vo.Coerce(a.Type, c.Value)
			if err != nil {
				return nil, err
			}
			c.Value = coerced
		}
		out[i] = c
	}
	return out, nil
}

// ValuesRecord binds the values to the schema for create.
func (r *Request) ValuesRecord(s *vo.Schema) (*vo.Record, error) {
	rec := vo.NewRecord(s)
	for name, v := range r.Values {
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
