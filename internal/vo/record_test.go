package vo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema() *Schema {
	return &Schema{
		Entity:   "Person",
		Table:    "person",
		Identity: "id",
		Version:  "version",
		Omit:     []string{"version"},
		Attributes: []Attribute{
			{Name: "id", Type: Long},
			{Name: "name", Type: String},
			{Name: "born", Type: Date, Search: SearchDayEqu},
			{Name: "score", Type: Double},
			{Name: "active", Type: Boolean},
			{Name: "photo", Type: Binary},
			{Name: "version", Type: Long},
		},
	}
}

func TestRecord_SetCoercesScalars(t *testing.T) {
	r := NewRecord(personSchema())

	require.NoError(t, r.Set("id", 42))
	require.NoError(t, r.Set("score", 3))
	require.NoError(t, r.Set("active", int64(1)))
	require.NoError(t, r.Set("born", "2007-12-23"))

	id, _ := r.Get("id")
	assert.Equal(t, int64(42), id)
	score, _ := r.Get("score")
	assert.Equal(t, float64(3), score)
	active, _ := r.Get("active")
	assert.Equal(t, true, active)
	born, _ := r.Get("born")
	assert.Equal(t, time.Date(2007, 12, 23, 0, 0, 0, 0, time.UTC), born)
}

func TestRecord_SetUnknownAttribute(t *testing.T) {
	r := NewRecord(personSchema())
	err := r.Set("nickname", "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAttribute)
	assert.False(t, r.Has("nickname"))
}

func TestRecord_SetTypeMismatch(t *testing.T) {
	r := NewRecord(personSchema())
	err := r.Set("id", "not-a-number")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

type criterion []int

func (c criterion) CloneValue() any { return append(criterion(nil), c...) }

func TestRecord_SetStoresCriteriaVerbatim(t *testing.T) {
	r := NewRecord(personSchema())
	require.NoError(t, r.Set("name", criterion{1, 2}))
	v, ok := r.Get("name")
	require.True(t, ok)
	assert.Equal(t, criterion{1, 2}, v)
}

func TestRecord_NamesFollowSchemaOrder(t *testing.T) {
	r := NewRecord(personSchema()).
		MustSet("score", 1.5).
		MustSet("id", 1).
		MustSet("name", "toto")
	assert.Equal(t, []string{"id", "name", "score"}, r.Names())
}

func TestRecord_IdentityAndVersion(t *testing.T) {
	r := NewRecord(personSchema()).MustSet("id", 7).MustSet("version", 3)
	assert.Equal(t, int64(7), r.ID())
	assert.Equal(t, int64(3), r.Version())
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := NewRecord(personSchema()).
		MustSet("photo", []byte{1, 2, 3}).
		MustSet("name", criterion{9})

	c := r.Clone()
	require.True(t, r.Equal(c))

	photo, _ := c.Get("photo")
	photo.([]byte)[0] = 99
	crit, _ := c.Get("name")
	crit.(criterion)[0] = 0

	orig, _ := r.Get("photo")
	assert.Equal(t, []byte{1, 2, 3}, orig)
	origCrit, _ := r.Get("name")
	assert.Equal(t, criterion{9}, origCrit)
}

func TestRecord_Diff(t *testing.T) {
	born := time.Date(2007, 12, 23, 9, 1, 6, 0, time.UTC)
	ref := NewRecord(personSchema()).
		MustSet("id", 1).
		MustSet("name", "toto").
		MustSet("born", born).
		MustSet("score", 1.0).
		MustSet("version", 5)

	t.Run("identical records", func(t *testing.T) {
		assert.Empty(t, ref.Clone().Diff(ref))
	})

	t.Run("changed and removed attributes", func(t *testing.T) {
		cur := ref.Clone().MustSet("name", "titi")
		cur.Unset("score")
		assert.Equal(t, map[string]any{"name": "titi", "score": nil}, cur.Diff(ref))
	})

	t.Run("same instant in another zone is equal", func(t *testing.T) {
		cur := ref.Clone().MustSet("born", born.In(time.FixedZone("CET", 3600)))
		assert.Empty(t, cur.Diff(ref))
	})

	t.Run("omitted attributes are ignored", func(t *testing.T) {
		cur := ref.Clone().MustSet("version", 6)
		assert.Empty(t, cur.Diff(ref))
	})

	t.Run("nil reference yields present attributes", func(t *testing.T) {
		cur := NewRecord(personSchema()).MustSet("name", "x").MustSet("version", 1)
		assert.Equal(t, map[string]any{"name": "x"}, cur.Diff(nil))
	})
}

func TestRecord_String(t *testing.T) {
	r := NewRecord(personSchema()).MustSet("name", "toto").MustSet("id", 1)
	assert.Equal(t, "Person{id=1, name=toto}", r.String())
}
