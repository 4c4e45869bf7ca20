package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/tidwall/gjson"
)

var ErrMalformed = errors.New("malformed payload")

func parsePayload(payload []byte) (gjson.Result, error) {
	if len(payload) == 0 {
		return gjson.Result{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, fmt.Errorf("%w: not valid JSON", ErrMalformed)
	}
	return gjson.ParseBytes(payload), nil
}

// field returns the first of names present on r, so callers can accept
// aliases such as "identity" and "username".
func field(r gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		if v := r.Get(name); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func requireString(r gjson.Result, names ...string) (string, error) {
	v := field(r, names...)
	if !v.Exists() {
		return "", fmt.Errorf("%w: missing '%s'", ErrMalformed, names[0])
	}
	if v.Type != gjson.String || v.Str == "" {
		return "", fmt.Errorf("%w: '%s' must be a non-empty string", ErrMalformed, names[0])
	}
	return v.Str, nil
}

func optionalString(r gjson.Result, names ...string) string {
	v := field(r, names...)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

func requireNumber(r gjson.Result, names ...string) (float64, error) {
	v := field(r, names...)
	if !v.Exists() {
		return 0, fmt.Errorf("%w: missing '%s'", ErrMalformed, names[0])
	}
	if v.Type != gjson.Number || math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return 0, fmt.Errorf("%w: '%s' must be a number", ErrMalformed, names[0])
	}
	return v.Num, nil
}

// maxTimestampMs is the last millisecond of year 9999.
const maxTimestampMs = 253402300799999

// requireTimestamp reads epoch milliseconds and rejects values no clock
// could have produced.
func requireTimestamp(r gjson.Result, names ...string) (int64, error) {
	n, err := requireNumber(r, names...)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxTimestampMs {
		return 0, fmt.Errorf("%w: '%s' out of range", ErrMalformed, names[0])
	}
	return int64(n), nil
}

func requireInt(r gjson.Result, name string) (int, error) {
	n, err := requireNumber(r, name)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: '%s' must be an integer", ErrMalformed, name)
	}
	return int(n), nil
}

// cellFrom reads one {x,y,color} object. Range is not checked here: the
// grid ignores out-of-range cells.
func cellFrom(r gjson.Result) (grid.Cell, error) {
	if !r.IsObject() {
		return grid.Cell{}, fmt.Errorf("%w: cell must be an object", ErrMalformed)
	}
	x, err := requireInt(r, "x")
	if err != nil {
		return grid.Cell{}, err
	}
	y, err := requireInt(r, "y")
	if err != nil {
		return grid.Cell{}, err
	}
	color, err := requireString(r, "color")
	if err != nil {
		return grid.Cell{}, err
	}
	return grid.Cell{X: x, Y: y, Color: grid.Color(color)}, nil
}
