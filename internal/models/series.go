package models

// Measurement is one normalized data point within a Series. Value is an
// integer in the Series' fixed-point unit so downstream aggregation never
// touches floating point.
type Measurement struct {
	MsSinceUnixEpoch int64  `json:"ms_since_unix_epoch"`
	Value            int64  `json:"value"`
	Group            string `json:"group"`
	Source           string `json:"source"`
}

// Series is a named, unit-homogeneous stream of measurements. Name, Family,
// and Unit are set once, from the first record routed to the series.
type Series struct {
	Name         string        `json:"name"`
	Family       string        `json:"family"`
	Unit         string        `json:"unit"`
	Measurements []Measurement `json:"measurements"`
}

// SeriesCollection is the output of one export parse: the input path plus
// every series, ordered by first-encountered record type.
type SeriesCollection struct {
	Source string   `json:"source"`
	Series []Series `json:"series"`
}

// MeasurementCount returns the total number of measurements across all series.
func (c *SeriesCollection) MeasurementCount() int64 {
	var n int64
	for i := range c.Series {
		n += int64(len(c.Series[i].Measurements))
	}
	return n
}
