package render

import (
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Helper binds a function to a name usable from templates.
type Helper struct {
	Name string
	Func any
}

// FuncMap converts a helper list into a template.FuncMap. Later entries win.
func FuncMap(helpers []Helper) template.FuncMap {
	funcs := make(template.FuncMap, len(helpers)+2)
	for _, h := range helpers {
		funcs[h.Name] = h.Func
	}
	return funcs
}

// DefaultHelpers is the helper set every site gets unless Options.Helpers is set.
func DefaultHelpers(md *Markdown) []Helper {
	return []Helper{
		{Name: "int", Func: ToInt},
		{Name: "safe", Func: Safe},
		{Name: "title", Func: Title},
		{Name: "default", Func: Default},
		{Name: "log", Func: logValue},
		{Name: "markdown", Func: md.Safe},
	}
}

// ToInt coerces a template value to an int. Floats are truncated, strings are
// parsed after trimming, nil is zero.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("int: cannot convert %q", n)
		}
		return int(math.Trunc(f)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int(rv.Uint()), nil // #nosec G115 -- template values are small
	case reflect.Float32, reflect.Float64:
		return int(math.Trunc(rv.Float())), nil
	}
	return 0, fmt.Errorf("int: cannot convert %T", v)
}

// Safe marks s as trusted HTML so it is not escaped.
func Safe(s any) template.HTML {
	// #nosec G203 -- explicit opt-in by the template author
	return template.HTML(fmt.Sprint(s))
}

var titleCaser = cases.Title(language.Und)

// Title converts s to title case.
func Title(s string) string {
	return titleCaser.String(s)
}

// Default returns value unless it is empty, in which case fallback is returned.
// Usage: {{ .subtitle | default "Welcome" }}
func Default(fallback, value any) any {
	if isEmpty(value) {
		return fallback
	}
	return value
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// logValue writes its arguments to the debug log and renders nothing.
func logValue(args ...any) string {
	slog.Debug("Template log", slog.String("value", fmt.Sprint(args...)))
	return ""
}
