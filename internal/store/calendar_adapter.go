package store

import (
	"time"

	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/instrument"
)

// CalendarSource adapts Store to calendar.Source, translating the
// instrument.Exchange/calendar.Entry types the calendar package works in
// to/from the plain strings the Store persists.
type CalendarSource struct {
	Store *Store
}

// CalendarWindow implements calendar.Source.
func (c CalendarSource) CalendarWindow(ex instrument.Exchange, from, to time.Time) (map[string]calendar.Entry, error) {
	rows, err := c.Store.CalendarWindow(string(ex), from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]calendar.Entry, len(rows))
	for k, r := range rows {
		out[k] = calendar.Entry{
			Exchange:     instrument.Exchange(r.Exchange),
			Date:         r.Date,
			IsTradingDay: r.IsTradingDay,
			Reason:       r.Reason,
			SessionType:  r.SessionType,
			Source:       r.Source,
		}
	}
	return out, nil
}
