package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_ToDatabase(t *testing.T) {
	m := NewMap()
	created := time.Date(2024, 3, 18, 10, 45, 30, 0, time.UTC)

	tests := []struct {
		name     string
		typeName string
		value    any
		want     any
	}{
		{"integer from int", Integer, 42, int64(42)},
		{"integer from string", Integer, " 7 ", int64(7)},
		{"biginteger from uint32", BigInteger, uint32(9), int64(9)},
		{"boolean from int", Boolean, 1, true},
		{"boolean from string", Boolean, "false", false},
		{"float from int", Float, 3, float64(3)},
		{"decimal from float", Decimal, 10.25, "10.25"},
		{"decimal from string", Decimal, "99.90", "99.90"},
		{"string from bytes", String, []byte("abc"), "abc"},
		{"text from int", Text, 12, "12"},
		{"date", Date, created, "2024-03-18"},
		{"time", Time, created, "10:45:30"},
		{"datetime", DateTime, created, "2024-03-18 10:45:30"},
		{"timestamp", Timestamp, created, "2024-03-18 10:45:30"},
		{"binary from string", Binary, "raw", []byte("raw")},
		{"nil passes through", Integer, nil, nil},
		{"unknown type is identity", "geometry", "POINT(1 2)", "POINT(1 2)"},
		{"literal is identity", Literal, "NOW()", "NOW()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ToDatabase(tt.typeName, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMap_ToDatabaseErrors(t *testing.T) {
	m := NewMap()

	_, err := m.ToDatabase(Integer, "twelve")
	require.Error(t, err)
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, Integer, convErr.Type)

	_, err = m.ToDatabase(Decimal, "1.2.3")
	assert.Error(t, err)

	_, err = m.ToDatabase(UUID, "not-a-uuid")
	assert.Error(t, err)

	_, err = m.ToDatabase(Binary, 12)
	assert.Error(t, err)
}

func TestMap_Arrays(t *testing.T) {
	m := NewMap()

	got, err := m.ToDatabase("integer[]", []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)

	// A scalar for an array type becomes a single element.
	got, err = m.ToDatabase("integer[]", "5")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(5)}, got)

	got, err = m.ToNative("boolean[]", []any{"1", int64(0)})
	require.NoError(t, err)
	assert.Equal(t, []any{true, false}, got)
}

func TestArrayBase(t *testing.T) {
	base, ok := ArrayBase("integer[]")
	assert.True(t, ok)
	assert.Equal(t, "integer", base)

	base, ok = ArrayBase("string")
	assert.False(t, ok)
	assert.Equal(t, "string", base)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, []any{1}, Wrap(1))
	assert.Equal(t, []any{1, 2}, Wrap([]int{1, 2}))
	assert.Equal(t, []any{[]byte("x")}, Wrap([]byte("x")))
	assert.Equal(t, []any{"a"}, Wrap([1]string{"a"}))
}

func TestUUIDType(t *testing.T) {
	m := NewMap()
	id := uuid.New()

	got, err := m.ToDatabase(UUID, id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), got)

	got, err = m.ToDatabase(UUID, " "+id.String()+" ")
	require.NoError(t, err)
	assert.Equal(t, id.String(), got)

	native, err := m.ToNative(UUID, []byte(id.String()))
	require.NoError(t, err)
	assert.Equal(t, id, native)

	_, err = uuid.Parse(NewUUID())
	assert.NoError(t, err)
}

func TestTimeType_ToNative(t *testing.T) {
	m := NewMap()

	got, err := m.ToNative(DateTime, []byte("2024-03-18 10:45:30"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 18, 10, 45, 30, 0, time.UTC), got)

	got, err = m.ToNative(Date, "2024-03-18")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), got)

	_, err = m.ToNative(Date, "yesterday")
	assert.Error(t, err)
}

type upperType struct{}

func (upperType) Name() string { return "upper" }
func (upperType) ToDatabase(v any) (any, error) { return "UP:" + toString(v), nil }
func (upperType) ToNative(v any) (any, error) { return toString(v), nil }

func TestMap_Register(t *testing.T) {
	m := NewMap()
	m.Register(upperType{})

	got, err := m.ToDatabase("upper", "x")
	require.NoError(t, err)
	assert.Equal(t, "UP:x", got)
	assert.Contains(t, m.Names(), "upper")

	_, ok := m.Get("upper[]")
	assert.True(t, ok)
}
