package types

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Layouts used when binding temporal values.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
)

var errUnsupported = errors.New("unsupported value")

func builtins() []Type {
	return []Type{
		intType{name: Integer},
		intType{name: BigInteger},
		boolType{},
		floatType{},
		decimalType{},
		stringType{name: String},
		stringType{name: Text},
		timeType{name: Date, layout: DateLayout},
		timeType{name: Time, layout: TimeLayout},
		timeType{name: DateTime, layout: DateTimeLayout},
		timeType{name: Timestamp, layout: DateTimeLayout},
		binaryType{},
		uuidType{},
		literalType{},
	}
}

type intType struct{ name string }

func (t intType) Name() string { return t.name }

func (t intType) ToDatabase(value any) (any, error) {
	return toInt64(t.name, value)
}

func (t intType) ToNative(value any) (any, error) {
	return toInt64(t.name, value)
}

func toInt64(name string, value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return toInt64(name, string(v))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &ConversionError{Type: name, Value: value, Err: err}
		}
		return n, nil
	}
	return nil, &ConversionError{Type: name, Value: value, Err: errUnsupported}
}

type boolType struct{}

func (boolType) Name() string { return Boolean }

func (boolType) ToDatabase(value any) (any, error) {
	return toBool(value)
}

func (boolType) ToNative(value any) (any, error) {
	return toBool(value)
}

func toBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case []byte:
		return toBool(string(v))
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, &ConversionError{Type: Boolean, Value: value, Err: err}
		}
		return b, nil
	}
	n, err := toInt64(Boolean, value)
	if err != nil {
		return nil, err
	}
	return n.(int64) != 0, nil
}

type floatType struct{}

func (floatType) Name() string { return Float }

func (floatType) ToDatabase(value any) (any, error) {
	return toFloat64(value)
}

func (floatType) ToNative(value any) (any, error) {
	return toFloat64(value)
}

func toFloat64(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return toFloat64(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &ConversionError{Type: Float, Value: value, Err: err}
		}
		return f, nil
	}
	n, err := toInt64(Float, value)
	if err != nil {
		return nil, err
	}
	return float64(n.(int64)), nil
}

// decimalType keeps values as strings so no precision is lost in transit.
type decimalType struct{}

func (decimalType) Name() string { return Decimal }

func (decimalType) ToDatabase(value any) (any, error) {
	return toDecimal(value)
}

func (decimalType) ToNative(value any) (any, error) {
	return toDecimal(value)
}

func toDecimal(value any) (any, error) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if _, ok := new(big.Rat).SetString(s); !ok {
			return nil, &ConversionError{Type: Decimal, Value: value, Err: errUnsupported}
		}
		return s, nil
	case []byte:
		return toDecimal(string(v))
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case *big.Rat:
		return v.FloatString(10), nil
	case *big.Float:
		return v.Text('f', -1), nil
	}
	n, err := toInt64(Decimal, value)
	if err != nil {
		return nil, err
	}
	return strconv.FormatInt(n.(int64), 10), nil
}

type stringType struct{ name string }

func (t stringType) Name() string { return t.name }

func (t stringType) ToDatabase(value any) (any, error) {
	return toString(value), nil
}

func (t stringType) ToNative(value any) (any, error) {
	return toString(value), nil
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}

type timeType struct {
	name   string
	layout string
}

func (t timeType) Name() string { return t.name }

func (t timeType) ToDatabase(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(t.layout), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return v.Format(t.layout), nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return time.Unix(v, 0).UTC().Format(t.layout), nil
	}
	return nil, &ConversionError{Type: t.name, Value: value, Err: errUnsupported}
}

var nativeLayouts = []string{
	time.RFC3339Nano,
	DateTimeLayout,
	"2006-01-02T15:04:05",
	DateLayout,
	TimeLayout,
}

func (t timeType) ToNative(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return t.ToNative(string(v))
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range append([]string{t.layout}, nativeLayouts...) {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return nil, &ConversionError{Type: t.name, Value: value, Err: errUnsupported}
	}
	return nil, &ConversionError{Type: t.name, Value: value, Err: errUnsupported}
}

type binaryType struct{}

func (binaryType) Name() string { return Binary }

func (binaryType) ToDatabase(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, &ConversionError{Type: Binary, Value: value, Err: errUnsupported}
}

func (binaryType) ToNative(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	case string:
		return []byte(v), nil
	}
	return nil, &ConversionError{Type: Binary, Value: value, Err: errUnsupported}
}

type uuidType struct{}

func (uuidType) Name() string { return UUID }

func (uuidType) ToDatabase(value any) (any, error) {
	id, err := toUUID(value)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

func (uuidType) ToNative(value any) (any, error) {
	return toUUID(value)
}

func toUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return toUUID(string(v))
	case string:
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return uuid.Nil, &ConversionError{Type: UUID, Value: value, Err: err}
		}
		return id, nil
	}
	return uuid.Nil, &ConversionError{Type: UUID, Value: value, Err: errUnsupported}
}

// NewUUID generates a random identifier suitable for a uuid column.
func NewUUID() string {
	return uuid.NewString()
}

type literalType struct{}

func (literalType) Name() string { return Literal }

func (literalType) ToDatabase(value any) (any, error) { return value, nil }

func (literalType) ToNative(value any) (any, error) { return value, nil }
