package healthkit

import (
	"encoding/xml"
	"fmt"
)

// recordAttributes is the flat attribute bag extracted from one <Record>
// element. It lives for exactly one record's conversion.
type recordAttributes struct {
	Type       string
	Value      string
	Unit       string
	SourceName string
	StartDate  string
	EndDate    string
}

// DebugString renders the bag for error reporting, one field per line.
func (r *recordAttributes) DebugString() string {
	return fmt.Sprintf("\ntype=%s\nvalue=%s\nunit=%s\nsource=%s\nstart_date=%s\nend_date=%s",
		r.Type, r.Value, r.Unit, r.SourceName, r.StartDate, r.EndDate)
}

// tryConsume copies attr's value into *dst if attr matches name. Consuming
// the same attribute name twice means the XML library handed us a duplicated
// attribute, which is an internal-consistency failure.
func tryConsume(attr xml.Attr, name string, dst *string) (bool, error) {
	if attr.Name.Local != name {
		return false, nil
	}
	if *dst != "" {
		return false, fmt.Errorf("attribute %q appears more than once", name)
	}
	*dst = attr.Value
	return true, nil
}

// extractAttributes populates a recordAttributes bag from a Record element's
// ordered attribute list. Records legitimately come in three shapes: all six
// attributes, five with no unit, or four with no unit and no value. Any
// other incomplete shape is an error.
func extractAttributes(attrs []xml.Attr) (*recordAttributes, error) {
	rec := &recordAttributes{}
	n := 0

	for _, attr := range attrs {
		for _, field := range []struct {
			name string
			dst  *string
		}{
			{"type", &rec.Type},
			{"unit", &rec.Unit},
			{"value", &rec.Value},
			{"sourceName", &rec.SourceName},
			{"startDate", &rec.StartDate},
			{"endDate", &rec.EndDate},
		} {
			consumed, err := tryConsume(attr, field.name, field.dst)
			if err != nil {
				return nil, recordErr(KindMalformedRecord, "%s:%s", err, rec.DebugString())
			}
			if consumed {
				n++
				break
			}
		}
		if n == 6 {
			return rec, nil
		}
	}

	if n == 5 && rec.Unit == "" {
		return rec, nil
	}
	if n == 4 && rec.Unit == "" && rec.Value == "" {
		return rec, nil
	}
	return nil, recordErr(KindMalformedRecord,
		"found %d of 6 attributes:%s", n, rec.DebugString())
}
