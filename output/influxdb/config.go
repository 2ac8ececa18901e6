// Package influxdb writes measurement buffers to an InfluxDB v2 bucket as
// line-protocol points, one point per MeasurementPoint.
package influxdb

import "gopkg.in/guregu/null.v3"

// Config holds the influxdb output's connection settings, mirroring the
// field set of InfluxDBv2DataRepositoryConfig's client-construction idiom
// (url/token/org/bucket/skip-tls). It has no other fields.
type Config struct {
	URL     null.String `json:"url" toml:"url"`
	Token   null.String `json:"token" toml:"token"`
	Org     null.String `json:"org" toml:"org"`
	Bucket  null.String `json:"bucket" toml:"bucket"`
	SkipTLS null.Bool   `json:"skip_tls" toml:"skip_tls"`
}

// NewConfig returns the influxdb output's defaults. URL, token, org and
// bucket have no sensible default and are left unset; New rejects a config
// without url, org or bucket, and does not check the token.
func NewConfig() Config {
	return Config{
		SkipTLS: null.BoolFrom(false),
	}
}

// Apply overlays any .Valid fields of cfg onto the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.URL.Valid {
		c.URL = cfg.URL
	}
	if cfg.Token.Valid {
		c.Token = cfg.Token
	}
	if cfg.Org.Valid {
		c.Org = cfg.Org
	}
	if cfg.Bucket.Valid {
		c.Bucket = cfg.Bucket
	}
	if cfg.SkipTLS.Valid {
		c.SkipTLS = cfg.SkipTLS
	}
	return c
}
