// Package outcome defines the result of a data access call. Non-OK
// statuses are successful results the caller branches on, not errors.
package outcome

import (
	"fmt"

	"github.com/roach88/recsql/internal/vo"
)

// Status is the outcome code.
type Status int

const (
	OK Status = iota
	NotFound
	NothingTodo
	ChangedTimestamp
	NoRights
	Error
)

var statusNames = [...]string{
	OK:               "OK",
	NotFound:         "NOT_FOUND",
	NothingTodo:      "NOTHING_TODO",
	ChangedTimestamp: "CHANGED_TIMESTAMP",
	NoRights:         "NO_RIGHTS",
	Error:            "ERROR",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus parses a status name such as "CHANGED_TIMESTAMP".
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return Error, fmt.Errorf("unknown status %q", name)
}

// Outcome is created once per call and never changed afterwards.
type Outcome struct {
	status  Status
	record  *vo.Record
	records []*vo.Record
	count   int64
	id      any
}

// Of returns a bare outcome with the given status.
func Of(s Status) Outcome { return Outcome{status: s} }

// WithRecord returns an OK outcome carrying one record.
func WithRecord(r *vo.Record) Outcome { return Outcome{status: OK, record: r, count: 1} }

// WithRecords returns an OK outcome carrying a list.
func WithRecords(rs []*vo.Record) Outcome {
	return Outcome{status: OK, records: rs, count: int64(len(rs))}
}

// WithCount returns an outcome carrying a count or a row count.
func WithCount(s Status, n int64) Outcome { return Outcome{status: s, count: n} }

// WithID returns an OK outcome carrying a generated identity.
func WithID(id any) Outcome { return Outcome{status: OK, id: id, count: 1} }

func (o Outcome) Status() Status     { return o.status }
func (o Outcome) OK() bool           { return o.status == OK }
func (o Outcome) Record() *vo.Record { return o.record }
func (o Outcome) Count() int64       { return o.count }
func (o Outcome) ID() any            { return o.id }

// Records returns a copy of the record list.
func (o Outcome) Records() []*vo.Record {
	if o.records == nil {
		return nil
	}
	return append([]*vo.Record(nil), o.records...)
}

func (o Outcome) String() string {
	switch {
	case o.record != nil:
		return fmt.Sprintf("%v %v", o.status, o.record)
	case o.records != nil:
		return fmt.Sprintf("%v %d records", o.status, len(o.records))
	case o.id != nil:
		return fmt.Sprintf("%v id=%v", o.status, o.id)
	}
	return fmt.Sprintf("%v count=%d", o.status, o.count)
}
