// Package relay implements a network transport so one agent's outputs can
// feed another agent's sources over NATS publish/subscribe, on a single
// configured subject (default "alumet.measurements").
package relay

import "gopkg.in/guregu/null.v3"

// Config holds the relay transport's NATS connection settings.
type Config struct {
	Address       null.String `json:"address" toml:"address"`
	Subject       null.String `json:"subject" toml:"subject"`
	Username      null.String `json:"username" toml:"username"`
	Password      null.String `json:"password" toml:"password"`
	CredsFilePath null.String `json:"creds_file_path" toml:"creds_file_path"`
}

// NewConfig returns the relay transport's defaults.
func NewConfig() Config {
	return Config{
		Subject: null.StringFrom("alumet.measurements"),
	}
}

// Apply overlays any .Valid fields of cfg onto the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.Address.Valid {
		c.Address = cfg.Address
	}
	if cfg.Subject.Valid {
		c.Subject = cfg.Subject
	}
	if cfg.Username.Valid {
		c.Username = cfg.Username
	}
	if cfg.Password.Valid {
		c.Password = cfg.Password
	}
	if cfg.CredsFilePath.Valid {
		c.CredsFilePath = cfg.CredsFilePath
	}
	return c
}
