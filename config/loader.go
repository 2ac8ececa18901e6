package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// DefaultConfigProvider returns the TOML text to use when the configured
// file does not exist.
type DefaultConfigProvider func() (string, error)

// Loader loads the agent's TOML configuration, following the same steps
// regardless of where the bytes came from: read (or fall back to a
// default), substitute environment variables, parse, then merge in any
// overrides.
type Loader struct {
	fs              afero.Fs
	file            string
	defaultProvider DefaultConfigProvider
	saveDefault     bool
	overrides       map[string]interface{}
	substituteEnv   bool
}

// NewLoader returns a Loader that will read file from fs on Load.
func NewLoader(fs afero.Fs, file string) *Loader {
	return &Loader{fs: fs, file: file}
}

// OrDefault sets the fallback used when file does not exist. If
// saveToFile is true, the default's text is written back to file.
func (l *Loader) OrDefault(provider DefaultConfigProvider, saveToFile bool) *Loader {
	l.defaultProvider = provider
	l.saveDefault = saveToFile
	return l
}

// WithOverride merges override into whatever override set was already
// configured (first call just sets it); overrides are applied, in the
// order added, after the file is parsed.
func (l *Loader) WithOverride(override map[string]interface{}) *Loader {
	if l.overrides == nil {
		l.overrides = override
	} else {
		MergeOverride(l.overrides, override)
	}
	return l
}

// SubstituteEnvVariables enables or disables `${VAR}` substitution,
// performed before the TOML parser ever sees the file's content.
func (l *Loader) SubstituteEnvVariables(enabled bool) *Loader {
	l.substituteEnv = enabled
	return l
}

// Load reads, substitutes, parses and merges the configuration.
func (l *Loader) Load() (map[string]interface{}, error) {
	content, err := l.readOrDefault()
	if err != nil {
		return nil, fmt.Errorf("could not load config from %q: %w", l.file, err)
	}

	if l.substituteEnv {
		content, err = SubstituteEnv(content)
		if err != nil {
			return nil, fmt.Errorf("could not load config from %q: %w", l.file, err)
		}
	}

	parsed := make(map[string]interface{})
	if _, err := toml.Decode(content, &parsed); err != nil {
		return nil, fmt.Errorf("could not load config from %q: invalid TOML: %w", l.file, err)
	}

	if l.overrides != nil {
		MergeOverride(parsed, l.overrides)
	}
	return parsed, nil
}

func (l *Loader) readOrDefault() (string, error) {
	data, err := afero.ReadFile(l.fs, l.file)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if l.defaultProvider == nil {
		return "", err
	}

	content, err := l.defaultProvider()
	if err != nil {
		return "", fmt.Errorf("default config provider: %w", err)
	}
	if l.saveDefault {
		if err := afero.WriteFile(l.fs, l.file, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("could not write default config: %w", err)
		}
	}
	return content, nil
}

// MarshalDefault serializes v (typically a struct with `toml` tags) to TOML
// text, for use as a DefaultConfigProvider.
func MarshalDefault(v interface{}) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
