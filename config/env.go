// Package config loads configuration structs from YAML files and
// environment variables.
//
// Environment variable names follow the pattern:
//
//	{Prefix}_{STAGE}_{FIELD}
//
// Named nested structs add a path segment:
//
//	{Prefix}_{STAGE}_{STRUCT}_{FIELD}
//
// Anonymous (embedded) struct fields are flattened and do not add a segment.
//
// A field's segment is taken from its yaml tag when present, so the same
// key names work in the file and in the environment. Untagged fields are
// converted from CamelCase to UPPER_SNAKE_CASE:
//
//	MailboxSize    → MAILBOX_SIZE
//	ScaleDownAfter → SCALE_DOWN_AFTER
//	HTTPListen     → HTTP_LISTEN
//
// Fields tagged yaml:"-" are never read from the environment.
//
// Supported field types: string, bool, int*, uint*, float*, time.Duration.
// Fields with unsupported types (functions, interfaces, channels, pointers,
// slices) are silently skipped.
//
// Example with broker.Config and stage "daemon_broker":
//
//	REACTIVE_DAEMON_BROKER_MAILBOX_SIZE=512
//	REACTIVE_DAEMON_BROKER_OVERFLOW=reject
//	REACTIVE_DAEMON_BROKER_POOL_MAX_WORKERS=64
//	REACTIVE_DAEMON_BROKER_POOL_SCALE_DOWN_AFTER=1m
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultPrefix is the first segment of every environment variable name
// unless Loader.Prefix is set.
const DefaultPrefix = "REACTIVE"

var durationType = reflect.TypeOf(time.Duration(0))

// Loader reads environment variables into configuration structs.
type Loader struct {
	// Prefix for environment variable names.
	// Default: "REACTIVE".
	Prefix string

	// lookup overrides os.LookupEnv for testing.
	lookup func(string) (string, bool)
}

func (l Loader) prefix(stage string) string {
	p := l.Prefix
	if p == "" {
		p = DefaultPrefix
	}
	return p + "_" + normalizeStage(stage)
}

func (l Loader) lookupEnv(key string) (string, bool) {
	if l.lookup != nil {
		return l.lookup(key)
	}
	return os.LookupEnv(key)
}

// Load populates the struct pointed to by dst with values from environment
// variables. The stage names the component being configured and becomes
// the second segment of the variable name.
//
// Only fields with a set variable are modified, so Load overlays the
// environment on defaults or on values read by LoadFile.
func (l Loader) Load(stage string, dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: dst must be a pointer to a struct, got %T", dst)
	}
	return walk(l.prefix(stage), v.Elem(), func(key string, fv reflect.Value) error {
		raw, ok := l.lookupEnv(key)
		if !ok {
			return nil
		}
		return setField(fv, raw, key)
	})
}

// Keys returns the environment variable names that [Loader.Load] would
// check for the given config struct. dst may be a struct or a pointer to
// one.
func (l Loader) Keys(stage string, dst any) []string {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	_ = walk(l.prefix(stage), v, func(key string, _ reflect.Value) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

// Load populates dst using the default Loader.
func Load(stage string, dst any) error {
	return Loader{}.Load(stage, dst)
}

// Keys returns env var names using the default Loader.
func Keys(stage string, dst any) []string {
	return Loader{}.Keys(stage, dst)
}

// walk calls fn for every supported leaf field of v with its variable name.
func walk(prefix string, v reflect.Value, fn func(key string, fv reflect.Value) error) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)

		// Unexported embedded structs still promote their exported fields.
		if !field.IsExported() {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				if err := walk(prefix, fv, fn); err != nil {
					return err
				}
			}
			continue
		}

		segment, ok := fieldSegment(field)
		if !ok {
			continue
		}
		key := prefix
		if !field.Anonymous {
			key = prefix + "_" + segment
		}

		switch {
		case field.Type == durationType, isSupportedKind(field.Type.Kind()):
			if err := fn(key, fv); err != nil {
				return err
			}
		case field.Type.Kind() == reflect.Struct:
			if err := walk(key, fv, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// fieldSegment returns the variable segment of a field and false if the
// field is excluded.
func fieldSegment(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("yaml")
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return "", false
	case "":
		return toUpperSnake(field.Name), true
	}
	return normalizeStage(name), true
}

func isSupportedKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func setField(v reflect.Value, raw, key string) error {
	// time.Duration is int64 underneath but is written as "5s", "100ms".
	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		v.SetBool(b)
	}
	return nil
}

// normalizeStage converts a name to a valid env var segment. Letters are
// uppercased, hyphens, slashes, spaces and underscores become underscores,
// and other characters are dropped.
func normalizeStage(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '/' || r == ' ' || r == '_':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// toUpperSnake converts a Go CamelCase field name to UPPER_SNAKE_CASE.
//
//	MailboxSize → MAILBOX_SIZE
//	URLPath     → URL_PATH
//	HTTPClient  → HTTP_CLIENT
func toUpperSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteRune('_')
			} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
