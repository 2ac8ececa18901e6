// Package csv writes measurement buffers to a delimiter-separated file,
// one row per point, with a header row whose attribute columns are fixed by
// the first batch written; attribute keys first seen in later batches go to
// a trailing __late_attributes column.
package csv

import "gopkg.in/guregu/null.v3"

// Config holds the csv output's settings. Optional fields use guregu/null
// so a config loader can distinguish "not set" from "set to the zero
// value", mirroring the null-typed config-field idiom used throughout this
// module's configuration layer.
type Config struct {
	OutputPath null.String `json:"output_path" toml:"output_path"`
	Delimiter  null.String `json:"delimiter" toml:"delimiter"`

	// UseUnitDisplayName only has an effect when AppendUnitToMetricName is
	// set: the appended unit is then Unit.DisplayName() (its Custom name, or
	// prefix plus base, e.g. "kJ") rather than its bare Base (e.g. "J").
	UseUnitDisplayName null.Bool `json:"use_unit_display_name" toml:"use_unit_display_name"`

	// AppendUnitToMetricName bakes the unit into the metric name column
	// (e.g. "cpu_energy_joule") instead of leaving the metric name bare.
	AppendUnitToMetricName null.Bool `json:"append_unit_to_metric_name" toml:"append_unit_to_metric_name"`
}

// NewConfig returns the csv output's defaults.
func NewConfig() Config {
	return Config{
		OutputPath:             null.StringFrom("./output/measurements.csv"),
		Delimiter:              null.StringFrom(";"),
		UseUnitDisplayName:     null.BoolFrom(true),
		AppendUnitToMetricName: null.BoolFrom(false),
	}
}

// Apply overlays any .Valid fields of cfg onto the receiver, leaving fields
// cfg did not set untouched.
func (c Config) Apply(cfg Config) Config {
	if cfg.OutputPath.Valid {
		c.OutputPath = cfg.OutputPath
	}
	if cfg.Delimiter.Valid {
		c.Delimiter = cfg.Delimiter
	}
	if cfg.UseUnitDisplayName.Valid {
		c.UseUnitDisplayName = cfg.UseUnitDisplayName
	}
	if cfg.AppendUnitToMetricName.Valid {
		c.AppendUnitToMetricName = cfg.AppendUnitToMetricName
	}
	return c
}
