package query

import "time"

// timeLayout is the display format for annotated timestamps.
const timeLayout = "2006-01-02 15:04:05 MST"

// TimeInfo carries a timestamp formatted in UTC and the display zone.
// The display field is named for the default Eastern zone; the zone itself
// is configurable.
type TimeInfo struct {
	UTC string `json:"utc"`
	ET  string `json:"et"`
}

// TimeInfo formats a unix timestamp in both zones.
func (e *Engine) TimeInfo(ts int64) TimeInfo {
	t := time.Unix(ts, 0)
	return TimeInfo{
		UTC: t.UTC().Format(timeLayout),
		ET:  t.In(e.loc).Format(timeLayout),
	}
}

// Location returns the configured display zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}
