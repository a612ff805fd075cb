package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SetValue sets a setting by its yaml key.
// Durations accept Go duration strings ("90s", "5m", "0").
func (c *Config) SetValue(key, value string) error {
	field, ok := settingsField(&c.Settings, key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	switch field.Interface().(type) {
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		field.SetInt(int64(d))
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		field.SetInt(int64(n))
	case string:
		field.SetString(value)
	default:
		return fmt.Errorf("unsupported configuration key: %s", key)
	}
	return nil
}

// GetValue returns a setting rendered as a string.
func (c *Config) GetValue(key string) (string, error) {
	field, ok := settingsField(&c.Settings, key)
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return formatValue(field), nil
}

// ToMap renders every setting keyed by its yaml name.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)
	v := reflect.ValueOf(c.Settings)
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		key := yamlKey(t.Field(i))
		if key == "" {
			continue
		}
		result[key] = formatValue(v.Field(i))
	}
	return result
}

// Keys returns the settable keys in sorted order.
func (c *Config) Keys() []string {
	m := c.ToMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func settingsField(s *Settings, key string) (reflect.Value, bool) {
	v := reflect.ValueOf(s).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if yamlKey(t.Field(i)) == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func yamlKey(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

func formatValue(v reflect.Value) string {
	switch x := v.Interface().(type) {
	case time.Duration:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
