package healthkit

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/claude/healthvault/internal/models"
)

// Result holds the outcome of parsing one export document.
type Result struct {
	Collection *models.SeriesCollection
	Records    int            // Record elements seen
	Skipped    []*RecordError // per-record failures, only in skip-invalid mode
}

// Parser converts HealthKit XML exports into series collections. The zero
// mode is fail-fast: the first bad record aborts the document. With
// skipInvalid set, bad records are collected in Result.Skipped and the rest
// of the document is still imported; a record either converts completely or
// contributes nothing.
type Parser struct {
	log         *slog.Logger
	skipInvalid bool
}

// New creates a Parser.
func New(log *slog.Logger, skipInvalid bool) *Parser {
	return &Parser{log: log, skipInvalid: skipInvalid}
}

// ParseFile parses the export XML at path. The path must name a regular
// file.
func (p *Parser) ParseFile(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	p.log.Info("reading HealthKit export", "path", path)
	return p.Parse(f, path)
}

// Parse parses an export document from r. source is recorded on the
// resulting collection, usually the input path.
func (p *Parser) Parse(r io.Reader, source string) (*Result, error) {
	result := &Result{
		Collection: &models.SeriesCollection{Source: source},
	}
	agg := &aggregator{
		col:   result.Collection,
		index: map[string]int{},
	}

	dec := xml.NewDecoder(r)
	if err := p.seekHealthData(dec); err != nil {
		return nil, err
	}

	// Iterate the direct children of <HealthData> in document order. The
	// export also contains ExportDate, Me, Workout, and other elements;
	// only Record children carry measurements.
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "Record" {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("skipping %s element: %w", t.Name.Local, err)
				}
				continue
			}

			result.Records++
			if err := p.processRecord(t.Attr, result.Records, agg); err != nil {
				recErr, ok := err.(*RecordError)
				if ok && p.skipInvalid {
					p.log.Warn("skipping record", "index", result.Records, "error", recErr)
					result.Skipped = append(result.Skipped, recErr)
				} else {
					return nil, err
				}
			}
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("skipping record body: %w", err)
			}

		case xml.EndElement:
			if t.Name.Local == "HealthData" {
				return result, nil
			}
		}
	}
	return result, nil
}

// seekHealthData advances the decoder to just inside the root <HealthData>
// element.
func (p *Parser) seekHealthData(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return fmt.Errorf("document has no HealthData root element")
		}
		if err != nil {
			return fmt.Errorf("reading XML: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "HealthData" {
				return fmt.Errorf("unexpected root element %q, want HealthData", se.Name.Local)
			}
			return nil
		}
	}
}

// processRecord runs one Record's attributes through extraction,
// classification, and aggregation. Classification happens before any series
// is created so a failed record never leaves a half-initialized series
// behind.
func (p *Parser) processRecord(attrs []xml.Attr, index int, agg *aggregator) error {
	rec, err := extractAttributes(attrs)
	if err != nil {
		return atRecord(err, index)
	}

	conv, err := classify(rec)
	if err != nil {
		return atRecord(err, index)
	}

	ms, err := parseTimestampMillis(rec.StartDate)
	if err != nil {
		return atRecord(err, index)
	}

	if rec.SourceName == "" {
		return atRecord(recordErr(KindMissingSource, "record:%s", rec.DebugString()), index)
	}
	source := "HealthKit:" + models.ToCamelCase(rec.SourceName)

	agg.add(rec.Type, conv, ms, source)
	return nil
}

// atRecord stamps a record index onto a RecordError.
func atRecord(err error, index int) error {
	if recErr, ok := err.(*RecordError); ok && recErr.Record == 0 {
		recErr.Record = index
	}
	return err
}

// aggregator routes converted measurements into series, creating each series
// on the first record of its type. The index maps record type strings to
// positions in the owned collection, so no series pointers are aliased while
// the slice grows.
type aggregator struct {
	col   *models.SeriesCollection
	index map[string]int
}

func (a *aggregator) add(recordType string, conv converted, ms int64, source string) {
	i, ok := a.index[recordType]
	if !ok {
		// First record of this type defines the series.
		a.col.Series = append(a.col.Series, models.Series{
			Name:   conv.Name,
			Family: conv.Family,
			Unit:   conv.Unit,
		})
		i = len(a.col.Series) - 1
		a.index[recordType] = i
	}

	a.col.Series[i].Measurements = append(a.col.Series[i].Measurements, models.Measurement{
		MsSinceUnixEpoch: ms,
		Value:            conv.Value,
		Group:            conv.Group,
		Source:           source,
	})
}
