// Package config loads the agent's TOML configuration file: environment
// variable substitution, deep-merge of override tables, and extraction of
// each plugin's own configuration subsection.
package config

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrInvalidSubstitution is returned by SubstituteEnv when a `${VAR}`
// pattern is malformed or names a variable that is not set or whose value
// is not valid UTF-8.
type ErrInvalidSubstitution struct {
	Reason string
}

func (e *ErrInvalidSubstitution) Error() string {
	return e.Reason
}

// SubstituteEnv replaces every `${VAR_NAME}` occurrence in input with the
// value of the VAR_NAME environment variable. The pattern can be escaped
// with a leading backslash (`\${NOT_A_VAR}`) to prevent substitution, in
// which case the backslash is dropped and the `${...}` is left as-is. It is
// meant to run on the raw file content before the TOML parser ever sees it.
func SubstituteEnv(input string) (string, error) {
	first := strings.Index(input, "${")
	if first < 0 {
		return input, nil
	}

	var res strings.Builder
	res.Grow(len(input))

	for {
		begin := strings.Index(input, "${")
		if begin < 0 {
			break
		}

		if begin == 0 || input[begin-1] != '\\' {
			res.WriteString(input[:begin])
			rest := input[begin:]

			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return "", &ErrInvalidSubstitution{Reason: fmt.Sprintf("unclosed substitution: %q", rest)}
			}

			name := rest[2:end]
			value, ok := os.LookupEnv(name)
			if !ok {
				return "", &ErrInvalidSubstitution{Reason: fmt.Sprintf("environment variable %q is not set", name)}
			}
			if !utf8.ValidString(value) {
				return "", &ErrInvalidSubstitution{Reason: fmt.Sprintf("environment variable %q is not valid UTF-8", name)}
			}
			res.WriteString(value)

			input = rest[end+1:]
		} else {
			// drop the escaping backslash, keep the literal "${...}"
			res.WriteString(input[:begin-1])
			res.WriteByte('$')
			input = input[begin+1:]
		}
	}
	res.WriteString(input)
	return res.String(), nil
}
