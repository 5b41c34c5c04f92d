// Package clause translates one attribute criterion into a SQL predicate
// fragment plus the parameters it binds.
//
// A criterion is one of:
//
//	plain value            rendered with the attribute's default search behaviour
//	Ops{C(op, v), ...}     every condition ANDed
//	OrGroup(C(op, v), ...) conditions ORed, parenthesised, ANDed with the rest
//
// Operators form a closed set. Each one has a rule in the rule table; the
// table is checked for completeness at init, so adding an operator without
// a rule fails immediately.
//
// CONSISTENCY:
//
// Render and Set share one decision function (resolve). The SQL text and the
// bound value therefore always agree: an UPPER column is compared with an
// upper-cased value, a LIKE column with a wildcard-completed value, a
// truncated date column with a date string of the same granularity.
//
// Rendering always emits "?" placeholders; dialects rebind them.
package clause
