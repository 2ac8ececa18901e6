/*
 *
 * k6 - a next-generation load testing tool
 * Copyright (C) 2016 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/alumet-dev/alumet/config"
)

// Use these when interacting with fs and writing to terminal, makes a command testable
var defaultFs = afero.NewOsFs()
var defaultWriter io.Writer = os.Stdout

// consoleWriter syncs writes with a mutex and, if the underlying stream is a
// TTY, erases to end-of-line on every newline so log lines don't leave
// trailing fragments behind a shorter subsequent line.
type consoleWriter struct {
	Writer io.Writer
	IsTTY  bool
	Mutex  *sync.Mutex

	// PersistentText, when set, is called after every write under Mutex; it
	// exists so a future persistent status line can redraw itself without
	// interleaving with normal log output.
	PersistentText func()
}

func (w *consoleWriter) Write(p []byte) (n int, err error) {
	origLen := len(p)
	if w.IsTTY {
		p = bytes.ReplaceAll(p, []byte{'\n'}, []byte{'\x1b', '[', '0', 'K', '\n'})
	}

	w.Mutex.Lock()
	n, err = w.Writer.Write(p)
	if w.PersistentText != nil {
		w.PersistentText()
	}
	w.Mutex.Unlock()

	if err != nil && n == len(p) {
		n = origLen
	}
	return n, err
}

// must panics if err is not nil.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// fprintf panics when there's an error writing to the supplied io.Writer.
func fprintf(w io.Writer, format string, a ...interface{}) (n int) {
	n, err := fmt.Fprintf(w, format, a...)
	if err != nil {
		panic(err.Error())
	}
	return n
}

// parseConfigOverrides turns every `--config-override` line (itself a
// small TOML fragment, e.g. `plugins.rapl.poll_interval = "1s"`, dotted
// keys building nested tables per the TOML spec) into one deep-merged
// override table, applied in the order given.
func parseConfigOverrides(lines []string) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, line := range lines {
		var fragment map[string]interface{}
		if _, err := toml.Decode(line, &fragment); err != nil {
			return nil, fmt.Errorf("config override %q is not a valid TOML fragment: %w", line, err)
		}
		config.MergeOverride(result, fragment)
	}
	return result, nil
}

// outputConfigOverride builds the nested override table `outputs.<name>.<key> = value`,
// used by the --output-file/--relay-out/--relay-in convenience flags so they
// don't require spelling out a --config-override for the common case.
func outputConfigOverride(output, key, value string) map[string]interface{} {
	return map[string]interface{}{
		"outputs": map[string]interface{}{
			output: map[string]interface{}{
				key: value,
			},
		},
	}
}

// inputConfigOverride is outputConfigOverride's mirror for the `inputs` table.
func inputConfigOverride(input, key, value string) map[string]interface{} {
	return map[string]interface{}{
		"inputs": map[string]interface{}{
			input: map[string]interface{}{
				key: value,
			},
		},
	}
}

// marshalTable encodes v (typically a map[string]interface{} built up from
// several sources) as TOML text.
func marshalTable(v interface{}) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
