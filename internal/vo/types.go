package vo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType is returned when parsing an unknown type name.
var ErrUnknownType = errors.New("unknown type")

// ScalarType is the declared type of an attribute.
type ScalarType int

const (
	Integer ScalarType = iota + 1
	Long
	Double
	String
	Date
	Timestamp
	Boolean
	Binary
	Shape
)

var scalarNames = map[ScalarType]string{
	Integer:   "INTEGER",
	Long:      "LONG",
	Double:    "DOUBLE",
	String:    "STRING",
	Date:      "DATE",
	Timestamp: "TIMESTAMP",
	Boolean:   "BOOLEAN",
	Binary:    "BINARY",
	Shape:     "SHAPE",
}

func (t ScalarType) String() string {
	if name, ok := scalarNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ScalarType(%d)", int(t))
}

// Valid reports whether t is a declared scalar type.
func (t ScalarType) Valid() bool {
	_, ok := scalarNames[t]
	return ok
}

// IsTemporal reports whether values of this type are time.Time.
func (t ScalarType) IsTemporal() bool {
	return t == Date || t == Timestamp
}

// IsNumeric reports whether values of this type are numbers.
func (t ScalarType) IsNumeric() bool {
	return t == Integer || t == Long || t == Double
}

// ParseScalarType parses a type name such as "LONG" (case-insensitive).
func ParseScalarType(name string) (ScalarType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range scalarNames {
		if n == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("scalar type %q: %w", name, ErrUnknownType)
}

// AttributeType is the default search behaviour of an attribute.
// The zero value (SearchDefault) means LIKE for strings and EQUAL otherwise.
type AttributeType int

const (
	SearchDefault AttributeType = iota
	SearchEqual
	SearchLike
	SearchFullLike
	SearchUpper
	SearchUpperLike
	SearchUpperFullLike
	SearchDayEqu
	SearchMonthEqu
	SearchYearEqu
)

var attributeTypeNames = map[AttributeType]string{
	SearchDefault:       "DEFAULT",
	SearchEqual:         "EQUAL",
	SearchLike:          "LIKE",
	SearchFullLike:      "FULL_LIKE",
	SearchUpper:         "UPPER",
	SearchUpperLike:     "UPPER_LIKE",
	SearchUpperFullLike: "UPPER_FULL_LIKE",
	SearchDayEqu:        "DAY_EQU",
	SearchMonthEqu:      "MONTH_EQU",
	SearchYearEqu:       "YEAR_EQU",
}

func (a AttributeType) String() string {
	if name, ok := attributeTypeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AttributeType(%d)", int(a))
}

func (a AttributeType) Valid() bool {
	_, ok := attributeTypeNames[a]
	return ok
}

// IsUpper reports whether the attribute is searched case-insensitively.
func (a AttributeType) IsUpper() bool {
	return a == SearchUpper || a == SearchUpperLike || a == SearchUpperFullLike
}

// IsDate reports whether the attribute is searched on a truncated date.
func (a AttributeType) IsDate() bool {
	return a == SearchDayEqu || a == SearchMonthEqu || a == SearchYearEqu
}

// ParseAttributeType parses a search behaviour name such as "UPPER_LIKE".
// The empty string parses to SearchDefault.
func ParseAttributeType(name string) (AttributeType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return SearchDefault, nil
	}
	for a, n := range attributeTypeNames {
		if n == upper {
			return a, nil
		}
	}
	return 0, fmt.Errorf("attribute type %q: %w", name, ErrUnknownType)
}
