package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Get returns the effective value of key as a string, and whether it is set
// to something other than empty.
func Get(key string) (string, bool, error) {
	if !IsKnownKey(key) {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := newViper(UserConfigPath())
	if err != nil {
		return "", false, err
	}
	val := v.GetString(key)
	return val, val != "", nil
}

// Set writes key=value to the file at path.
func Set(path, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	settings, err := readFile(path)
	if err != nil {
		return err
	}
	setNested(settings, key, value)
	return writeFile(path, settings)
}

// Unset removes key from the file at path. Removing an absent key is a no-op.
func Unset(path, key string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	settings, err := readFile(path)
	if err != nil {
		return err
	}
	deleteNested(settings, key)
	return writeFile(path, settings)
}

// List returns the values stored in the file at path, flattened to dotted
// keys. Defaults and environment overrides are not included.
func List(path string) (map[string]string, error) {
	settings, err := readFile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flatten("", settings, out)
	return out, nil
}

// Effective returns every known key with its resolved value.
func Effective() (map[string]string, error) {
	v, err := newViper(UserConfigPath())
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(defaults))
	for _, k := range Keys() {
		out[k] = v.GetString(k)
	}
	return out, nil
}

func readFile(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if isNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return v.AllSettings(), nil
}

func writeFile(path string, settings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	// Config may hold API tokens.
	return os.Chmod(path, 0600)
}

func setNested(m map[string]any, key, value string) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

func deleteNested(m map[string]any, key string) {
	parts := strings.Split(key, ".")
	parent := m
	for _, p := range parts[:len(parts)-1] {
		child, ok := parent[p].(map[string]any)
		if !ok {
			return
		}
		parent = child
	}
	delete(parent, parts[len(parts)-1])

	if len(parts) > 1 && len(parent) == 0 {
		delete(m, parts[0])
	}
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(key, child, out)
			continue
		}
		out[key] = fmt.Sprint(v)
	}
}

// IsSecretKey reports whether values of key should be masked for display.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "key") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

// MaskSecret returns a display form of a secret: the first and last four
// characters, or stars for short values.
func MaskSecret(value string) string {
	if value == "" {
		return "(not set)"
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// Display returns value masked when key holds a secret.
func Display(key, value string) string {
	if IsSecretKey(key) {
		return MaskSecret(value)
	}
	return value
}
