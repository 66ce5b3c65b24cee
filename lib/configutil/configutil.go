package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// ReadConfig reads a json5 configuration file. A sibling
// `<name>.local.<ext>` file, when present, is merged on top of it so
// machine-local overrides never need to touch the checked-in config.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, err
		}
		found = true
	}

	localName := localVariant(name)
	local, err := os.ReadFile(localName)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(local) > 0 {
		var override T
		if err := json5.Unmarshal(local, &override); err != nil {
			return out, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localName)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

func localVariant(name string) string {
	ext := filepath.Ext(name)
	prefix := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s.local%s", prefix, ext)
}

// ReadRecursively looks for the named config file in the working
// directory and every parent up to the filesystem root.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	current, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			parent := filepath.Dir(current)
			if parent == current {
				return zero, os.ErrNotExist
			}
			current = parent
			continue
		}
		return config, err
	}
}
