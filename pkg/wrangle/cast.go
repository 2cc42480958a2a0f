package wrangle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
)

// targetType maps a configured type name to a column type.
func targetType(kind string) (columnar.ColumnType, error) {
	switch kind {
	case "int":
		return columnar.ColumnTypeInt, nil
	case "float":
		return columnar.ColumnTypeFloat, nil
	case "str", "string":
		return columnar.ColumnTypeString, nil
	case "bool":
		return columnar.ColumnTypeBool, nil
	case "datetime":
		return columnar.ColumnTypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unknown type %q", kind)
	}
}

// castValue converts one non-null value to typ. unit applies to numeric
// epoch values cast to timestamps.
func castValue(v interface{}, typ columnar.ColumnType, unit string) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case columnar.ColumnTypeString:
		return columnar.FormatValue(v), nil

	case columnar.ColumnTypeInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			if math.IsInf(x, 0) || math.IsNaN(x) {
				return nil, fmt.Errorf("cannot convert %v to int", x)
			}
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			s := strings.TrimSpace(x)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
				return int64(f), nil
			}
			return nil, fmt.Errorf("cannot convert %q to int", x)
		case time.Time:
			return x.Unix(), nil
		}

	case columnar.ColumnTypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case bool:
			if x {
				return 1.0, nil
			}
			return 0.0, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil || math.IsNaN(f) {
				return nil, fmt.Errorf("cannot convert %q to float", x)
			}
			return f, nil
		case time.Time:
			return float64(x.UnixNano()) / 1e9, nil
		}

	case columnar.ColumnTypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case float64:
			return x != 0, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no", "":
				return false, nil
			}
			return nil, fmt.Errorf("cannot convert %q to bool", x)
		}

	case columnar.ColumnTypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case int64:
			return epochToTime(float64(x), x, true, unit)
		case float64:
			return epochToTime(x, 0, false, unit)
		case string:
			s := strings.TrimSpace(x)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return epochToTime(float64(n), n, true, unit)
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return epochToTime(f, 0, false, unit)
			}
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t.UTC(), nil
			}
			return nil, fmt.Errorf("cannot convert %q to datetime", x)
		}
	}
	return nil, fmt.Errorf("cannot convert %v (%T) to %s", v, v, typ)
}

func epochToTime(f float64, n int64, exact bool, unit string) (interface{}, error) {
	var perUnit int64
	switch unit {
	case "s", "":
		perUnit = int64(time.Second)
	case "ms":
		perUnit = int64(time.Millisecond)
	case "us":
		perUnit = int64(time.Microsecond)
	case "ns":
		perUnit = 1
	default:
		return nil, fmt.Errorf("unknown datetime unit %q", unit)
	}
	// Nanoseconds since the epoch must fit in an int64.
	limit := math.MaxInt64 / perUnit
	if exact {
		if n >= limit || n <= -limit {
			return nil, fmt.Errorf("epoch value %d%s is out of range", n, unit)
		}
		return time.Unix(0, n*perUnit).UTC(), nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("cannot convert %v to datetime", f)
	}
	whole, frac := math.Modf(f)
	if math.Abs(whole) >= float64(limit) {
		return nil, fmt.Errorf("epoch value %v%s is out of range", f, unit)
	}
	return time.Unix(0, int64(whole)*perUnit+int64(math.Round(frac*float64(perUnit)))).UTC(), nil
}
