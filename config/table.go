package config

import (
	"bytes"

	"github.com/BurntSushi/toml"
)

// Table is a plugin's own configuration sub-table, already stripped of the
// enabled/enable key by ExtractPluginsConfig. It is deliberately untyped
// (map[string]interface{}) at this layer, the same way the parsed document
// it came from is untyped; a plugin recovers its own shape from it with
// Decode.
type Table map[string]interface{}

// EmptyTable is passed to a plugin that has no configuration section of its
// own, so Init never has to nil-check its argument.
func EmptyTable() *Table {
	t := make(Table)
	return &t
}

// ParseTable parses TOML text directly into a Table, the same shape
// MarshalDefault's output is meant to be read back into; used by a
// plugin's DefaultConfig to turn a marshaled default struct back into the
// untyped Table shape config regen expects.
func ParseTable(text string) (*Table, error) {
	var t Table
	if _, err := toml.Decode(text, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Decode re-encodes t as TOML and decodes it into v, which should be a
// pointer to a struct with `toml` tags. This is the same round-trip a
// plugin's own DefaultConfig goes through in reverse (MarshalDefault), so a
// plugin only ever deals with its own concrete config struct, never the
// untyped map the loader produced.
func (t *Table) Decode(v interface{}) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]interface{}(*t)); err != nil {
		return err
	}
	_, err := toml.Decode(buf.String(), v)
	return err
}
