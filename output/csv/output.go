package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

const lateAttributesColumn = "__late_attributes"

const timestampLayout = "2006-01-02T15:04:05Z"

const openFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// Output is a blocking output.Blocking sink that appends one row per
// measurement point to a delimiter-separated file. The attribute-column
// schema is frozen from the first batch of points ever written (the union
// of attribute keys observed in that first batch, in first-seen order);
// any attribute key observed afterwards that was not part of that frozen
// schema is serialized into the trailing __late_attributes column instead
// of silently gaining its own column, since a real file's header cannot be
// rewritten once rows have been appended under it.
type Output struct {
	fs     afero.Fs
	cfg    Config
	logger logrus.FieldLogger

	mu     sync.Mutex
	file   afero.File
	writer *csv.Writer
	schema []string // frozen after the first Write call
}

// New constructs a csv output. The file is opened lazily on the first Write
// call so that an output which never receives a point never creates an
// empty file.
func New(fs afero.Fs, cfg Config, logger logrus.FieldLogger) *Output {
	return &Output{fs: fs, cfg: cfg, logger: logger}
}

var _ output.Blocking = (*Output)(nil)

func (o *Output) Write(buf *metrics.MeasurementBuffer, ctx *output.Context) error {
	if buf.Len() == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		if err := o.open(); err != nil {
			return fmt.Errorf("csv output: %w", err)
		}
		o.schema = attributeSchema(buf)
		if err := o.writeHeader(); err != nil {
			return fmt.Errorf("csv output: %w", err)
		}
	}

	for _, p := range buf.Points() {
		row, err := o.row(p, ctx.Registry)
		if err != nil {
			return fmt.Errorf("csv output: %w", err)
		}
		if err := o.writer.Write(row); err != nil {
			return fmt.Errorf("csv output: write row: %w", err)
		}
	}
	o.writer.Flush()
	return o.writer.Error()
}

// Close flushes and closes the underlying file, if it was ever opened.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return nil
	}
	o.writer.Flush()
	return o.file.Close()
}

func (o *Output) open() error {
	path := o.cfg.OutputPath.String
	f, err := o.fs.OpenFile(path, openFlags, 0o644)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", path, err)
	}
	o.file = f

	delim := ';'
	if d := o.cfg.Delimiter.String; d != "" {
		delim = rune(d[0])
	}
	w := csv.NewWriter(f)
	w.Comma = delim
	o.writer = w
	return nil
}

func (o *Output) writeHeader() error {
	header := append([]string{
		"metric", "timestamp", "value",
		"resource_kind", "resource_id", "consumer_kind", "consumer_id",
	}, o.schema...)
	header = append(header, lateAttributesColumn)
	if err := o.writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	o.writer.Flush()
	return o.writer.Error()
}

func (o *Output) row(p metrics.MeasurementPoint, registry *metrics.Registry) ([]string, error) {
	m, ok := registry.ByID(p.MetricID)
	if !ok {
		return nil, fmt.Errorf("unknown metric id %d", p.MetricID)
	}

	row := []string{
		o.metricName(*m),
		p.Timestamp.UTC().Format(timestampLayout),
		p.Value.String(),
		p.Resource.KindName(), p.Resource.ID(),
		p.Consumer.KindName(), p.Consumer.ID(),
	}

	declared := make(map[string]bool, len(o.schema))
	for _, key := range o.schema {
		declared[key] = true
		if v, ok := p.Attr(key); ok {
			row = append(row, v.String())
		} else {
			row = append(row, "")
		}
	}

	var late []string
	for _, a := range p.Attributes() {
		if !declared[a.Key] {
			late = append(late, fmt.Sprintf("%s=%s", a.Key, a.Value.String()))
		}
	}
	row = append(row, strings.Join(late, ","))

	return row, nil
}

func (o *Output) metricName(m metrics.Metric) string {
	if !o.cfg.AppendUnitToMetricName.Valid || !o.cfg.AppendUnitToMetricName.Bool {
		return m.Name
	}
	if m.Unit == (metrics.Unit{}) || m.Unit == metrics.UnitUnity {
		return m.Name
	}
	unitName := m.Unit.Base
	if o.cfg.UseUnitDisplayName.Valid && o.cfg.UseUnitDisplayName.Bool {
		unitName = m.Unit.DisplayName()
	}
	return m.Name + "_" + unitName
}

// attributeSchema returns the union of attribute keys across every point in
// buf, in first-seen order (the order points and their attributes were
// appended, not alphabetical).
func attributeSchema(buf *metrics.MeasurementBuffer) []string {
	seen := make(map[string]bool)
	var schema []string
	for _, p := range buf.Points() {
		for _, a := range p.Attributes() {
			if !seen[a.Key] {
				seen[a.Key] = true
				schema = append(schema, a.Key)
			}
		}
	}
	return schema
}
