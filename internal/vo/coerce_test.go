package vo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	ts := time.Date(2007, 12, 23, 9, 1, 6, 0, time.UTC)

	testCases := []struct {
		name string
		typ  ScalarType
		in   any
		want any
	}{
		{"int to long", Long, 5, int64(5)},
		{"numeric string to integer", Integer, " 12 ", int64(12)},
		{"integral float to long", Long, 3.0, int64(3)},
		{"int to double", Double, 2, float64(2)},
		{"bytes to string", String, []byte("abc"), "abc"},
		{"sqlite timestamp text", Timestamp, "2007-12-23 09:01:06", ts},
		{"rfc3339 text", Timestamp, "2007-12-23T09:01:06Z", ts},
		{"unix seconds", Timestamp, ts.Unix(), ts},
		{"int to bool", Boolean, int64(0), false},
		{"text to bool", Boolean, "true", true},
		{"string to binary", Binary, "ab", []byte("ab")},
		{"nil stays nil", String, nil, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Coerce(tc.typ, tc.in)
			require.NoError(t, err)
			if want, ok := tc.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)), "got %v", got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCoerce_Mismatch(t *testing.T) {
	testCases := []struct {
		name string
		typ  ScalarType
		in   any
	}{
		{"fractional long", Long, 1.5},
		{"number to string", String, 12},
		{"bool to double", Double, true},
		{"garbage time", Timestamp, "yesterday"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Coerce(tc.typ, tc.in)
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestEqual(t *testing.T) {
	ts := time.Date(2007, 12, 23, 9, 1, 6, 0, time.UTC)
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, int64(0)))
	assert.True(t, Equal(ts, ts.In(time.FixedZone("X", 7200))))
	assert.True(t, Equal([]byte("a"), []byte("a")))
	assert.False(t, Equal(int64(1), int64(2)))
}
