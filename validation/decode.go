package validation

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

var timeType = reflect.TypeOf(time.Time{})

// Accepted date layouts, tried in order
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceHook trims strings, treats blank strings as absent for optional
// fields, parses dates and rejects non-finite numbers. Other numeric coercion
// is left to WeaklyTypedInput.
var coerceHook mapstructure.DecodeHookFuncType = func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	s = strings.TrimSpace(s)
	if s == "" && to.Kind() == reflect.Ptr {
		return nil, nil
	}
	if to == timeType || to == reflect.PtrTo(timeType) {
		return parseDate(s)
	}
	if isFloat(to) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && (math.IsInf(f, 0) || math.IsNaN(f)) {
			return nil, fmt.Errorf("non-finite number %q", s)
		}
	}
	return s, nil
}

func isFloat(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// fieldFromDecodeError extracts the quoted field name mapstructure puts in its messages
func fieldFromDecodeError(msg string) string {
	start := strings.Index(msg, "'")
	if start < 0 {
		return "record"
	}
	end := strings.Index(msg[start+1:], "'")
	if end < 0 {
		return "record"
	}
	return msg[start+1 : start+1+end]
}

func decodeMessage(field, msg string) string {
	switch {
	case strings.Contains(msg, "non-finite number"):
		return fmt.Sprintf("%s must be a finite number", field)
	case strings.Contains(msg, "as float"), strings.Contains(msg, "as int"), strings.Contains(msg, "as uint"):
		return fmt.Sprintf("%s must be a number", field)
	case strings.Contains(msg, "as bool"):
		return fmt.Sprintf("%s must be a boolean", field)
	case strings.Contains(msg, "invalid date"):
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD or RFC 3339)", field)
	default:
		return msg
	}
}
