// Package vo provides the typed record model ("value objects") used by the
// data access engine.
//
// A Schema declares one entity: its table, the ordered attribute list with a
// scalar type per attribute, the identity attribute, the version attribute
// used for optimistic concurrency, and the attributes excluded from diffing.
//
// A Record is an attribute bag bound to a Schema. Every attribute stored in a
// record must exist in the schema; scalar values are coerced to their
// canonical Go representation on Set:
//
//	INTEGER, LONG      int64
//	DOUBLE             float64
//	STRING             string
//	DATE, TIMESTAMP    time.Time
//	BOOLEAN            bool
//	BINARY, SHAPE      []byte
//
// Values that are not Go scalars (criteria such as operator maps) are stored
// untouched so the same Record type can serve as a criteria record.
//
// ATTRIBUTE TYPES:
//
// An AttributeType is the default search behaviour of an attribute. It is
// consulted by the clause builder whenever a criterion carries a plain value
// instead of an explicit operator.
package vo
