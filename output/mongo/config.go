// Package mongo writes measurement buffers to a MongoDB collection as BSON
// documents, one InsertMany call per flushed buffer.
package mongo

import "gopkg.in/guregu/null.v3"

// Config holds the mongo output's connection settings.
type Config struct {
	URI        null.String `json:"uri" toml:"uri"`
	Database   null.String `json:"database" toml:"database"`
	Collection null.String `json:"collection" toml:"collection"`
}

// NewConfig returns the mongo output's defaults. Database and collection
// fall back to "alumet"/"measurements" when unset; URI has no default.
func NewConfig() Config {
	return Config{
		Database:   null.StringFrom("alumet"),
		Collection: null.StringFrom("measurements"),
	}
}

// Apply overlays any .Valid fields of cfg onto the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.URI.Valid {
		c.URI = cfg.URI
	}
	if cfg.Database.Valid {
		c.Database = cfg.Database
	}
	if cfg.Collection.Valid {
		c.Collection = cfg.Collection
	}
	return c
}
