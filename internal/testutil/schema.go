package testutil

import "github.com/roach88/recsql/internal/vo"

// PersonSchema describes the demo person table: a numeric identity from
// auto-increment and a LONG version counter.
func PersonSchema() *vo.Schema {
	return &vo.Schema{
		Entity:   "Person",
		Table:    "person",
		Identity: "id",
		Version:  "version",
		Sequence: "person_seq",
		Omit:     []string{"version"},
		Attributes: []vo.Attribute{
			{Name: "id", Type: vo.Long},
			{Name: "name", Type: vo.String},
			{Name: "email", Type: vo.String, Search: vo.SearchUpperLike},
			{Name: "born", Type: vo.Date, Search: vo.SearchDayEqu},
			{Name: "score", Type: vo.Double},
			{Name: "active", Type: vo.Boolean},
			{Name: "owner", Type: vo.String, Search: vo.SearchEqual},
			{Name: "version", Type: vo.Long},
		},
	}
}

// AddressSchema describes the demo address table: a STRING identity and a
// TIMESTAMP version, joined to its person.
func AddressSchema() *vo.Schema {
	return &vo.Schema{
		Entity:   "Address",
		Table:    "address",
		Identity: "id",
		Version:  "updated",
		Attributes: []vo.Attribute{
			{Name: "id", Type: vo.String, Column: "address.id", Search: vo.SearchEqual},
			{Name: "personId", Type: vo.Long, Column: "person_id"},
			{Name: "city", Type: vo.String, Search: vo.SearchUpper},
			{Name: "updated", Type: vo.Timestamp},
			{Name: "personName", Type: vo.String, Column: "p.name"},
		},
		Joins: []vo.Join{{Table: "LEFT JOIN person p", On: "p.id = address.person_id"}},
	}
}
