package store

import (
	"database/sql"
	"fmt"
	"time"
)

func encode(v any) (kind string, num, text any) {
	switch x := v.(type) {
	case nil:
		return kindNull, nil, nil
	case float64:
		return kindNumber, x, nil
	case int:
		return kindInt, float64(x), nil
	case bool:
		if x {
			return kindBool, 1.0, nil
		}
		return kindBool, 0.0, nil
	case time.Time:
		return kindTime, nil, x.UTC().Format(time.RFC3339Nano)
	case string:
		return kindText, nil, x
	default:
		return kindText, nil, fmt.Sprint(x)
	}
}

func decode(kind string, num sql.NullFloat64, text sql.NullString) (any, error) {
	switch kind {
	case kindNull:
		return nil, nil
	case kindNumber:
		return num.Float64, nil
	case kindInt:
		return int(num.Float64), nil
	case kindBool:
		return num.Float64 != 0, nil
	case kindTime:
		t, err := time.Parse(time.RFC3339Nano, text.String)
		if err != nil {
			return nil, err
		}
		return t, nil
	case kindText:
		return text.String, nil
	}
	return nil, fmt.Errorf("unknown cell kind %q", kind)
}
