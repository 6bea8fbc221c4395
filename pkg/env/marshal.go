package env

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Options tunes Marshal output.
type Options struct {
	// IncludeEmpty writes "KEY=" lines for zero values, useful for templates.
	IncludeEmpty bool
	// Only restricts output to the listed keys, in that order.
	Only []string
}

// Marshal renders a struct pointer as .env content using its `env` tags.
func Marshal(c any, opts Options) (string, error) {
	v := reflect.ValueOf(c)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return "", fmt.Errorf("env: expected pointer to struct, got %T", c)
	}
	v = v.Elem()
	t := v.Type()

	values := make(map[string]string)
	var order []string

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		// "KEY,required" -> "KEY"
		key, _, _ := strings.Cut(field.Tag.Get("env"), ",")
		if key == "" {
			continue
		}

		val := v.Field(i)
		if val.IsZero() && !opts.IncludeEmpty {
			continue
		}

		values[key] = formatValue(val, field.Tag.Get("envSeparator"))
		order = append(order, key)
	}

	if len(opts.Only) > 0 {
		order = order[:0]
		for _, key := range opts.Only {
			if _, ok := values[key]; ok {
				order = append(order, key)
			}
		}
	}

	var sb strings.Builder
	for _, key := range order {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(quote(values[key]))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func formatValue(v reflect.Value, sep string) string {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice:
		if sep == "" {
			sep = ","
		}
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i), "")
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// quote wraps values godotenv would otherwise split or strip.
func quote(s string) string {
	if strings.ContainsAny(s, " #\"'\n\t") {
		return strconv.Quote(s)
	}
	return s
}
