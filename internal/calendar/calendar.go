// Package calendar implements trading-day set operations (§4.1) over
// TradingCalendarEntry rows supplied by a calendar-backed store.
package calendar

import (
	"sort"
	"time"

	"github.com/aristath/quoteflow/internal/errkind"
	"github.com/aristath/quoteflow/internal/instrument"
)

// Entry mirrors a persisted TradingCalendarEntry row (§3).
type Entry struct {
	Exchange    instrument.Exchange
	Date        time.Time // civil date, time-of-day zeroed
	IsTradingDay bool
	Reason      string
	SessionType string
	Source      string
}

// Source supplies the known calendar rows for an exchange over a window.
// Missing rows in the window are "unknown, not no-trade" — callers must
// not assume absence means the exchange was closed.
type Source interface {
	CalendarWindow(ex instrument.Exchange, from, to time.Time) (map[string]Entry, error)
}

// newUnknownWindowErr builds the errkind.NotFound error returned when the
// window has gaps in the supplied calendar data.
func newUnknownWindowErr(ex instrument.Exchange, d time.Time) error {
	return errkind.New(errkind.NotFound, "calendar",
		&unknownDayErr{ex: ex, date: d})
}

type unknownDayErr struct {
	ex   instrument.Exchange
	date time.Time
}

func (e *unknownDayErr) Error() string {
	return "calendar: unknown trading-day status for " + string(e.ex) + " " + e.date.Format("2006-01-02")
}

func dateKey(d time.Time) string { return d.Format("2006-01-02") }

// IsTradingDay reports whether d is a trading day for ex, per src. Returns
// an error if the calendar has no row for that date.
func IsTradingDay(src Source, ex instrument.Exchange, d time.Time) (bool, error) {
	d = civil(d)
	rows, err := src.CalendarWindow(ex, d, d)
	if err != nil {
		return false, err
	}
	e, ok := rows[dateKey(d)]
	if !ok {
		return false, newUnknownWindowErr(ex, d)
	}
	return e.IsTradingDay, nil
}

// TradingDaysIn returns the sorted list of trading days for ex within
// [from, to] inclusive. Any unknown date in the window is an error —
// callers (the planner) must refuse to emit work over unknown windows.
func TradingDaysIn(src Source, ex instrument.Exchange, from, to time.Time) ([]time.Time, error) {
	from, to = civil(from), civil(to)
	if to.Before(from) {
		return nil, nil
	}
	rows, err := src.CalendarWindow(ex, from, to)
	if err != nil {
		return nil, err
	}
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		e, ok := rows[dateKey(d)]
		if !ok {
			return nil, newUnknownWindowErr(ex, d)
		}
		if e.IsTradingDay {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// NextTradingDay returns the first trading day strictly after d, searching
// up to maxLookahead days. An unknown date reached before a trading day is
// found is an error.
func NextTradingDay(src Source, ex instrument.Exchange, d time.Time, maxLookahead int) (time.Time, error) {
	d = civil(d)
	start, end := d.AddDate(0, 0, 1), d.AddDate(0, 0, maxLookahead)
	rows, err := src.CalendarWindow(ex, start, end)
	if err != nil {
		return time.Time{}, err
	}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		e, ok := rows[dateKey(day)]
		if !ok {
			return time.Time{}, newUnknownWindowErr(ex, day)
		}
		if e.IsTradingDay {
			return day, nil
		}
	}
	return time.Time{}, errkind.New(errkind.NotFound, "calendar.NextTradingDay", errNoneFound)
}

// PreviousTradingDay returns the last trading day strictly before d,
// searching up to maxLookback days. An unknown date reached before a
// trading day is found is an error.
func PreviousTradingDay(src Source, ex instrument.Exchange, d time.Time, maxLookback int) (time.Time, error) {
	d = civil(d)
	start, end := d.AddDate(0, 0, -maxLookback), d.AddDate(0, 0, -1)
	rows, err := src.CalendarWindow(ex, start, end)
	if err != nil {
		return time.Time{}, err
	}
	for day := end; !day.Before(start); day = day.AddDate(0, 0, -1) {
		e, ok := rows[dateKey(day)]
		if !ok {
			return time.Time{}, newUnknownWindowErr(ex, day)
		}
		if e.IsTradingDay {
			return day, nil
		}
	}
	return time.Time{}, errkind.New(errkind.NotFound, "calendar.PreviousTradingDay", errNoneFound)
}

var errNoneFound = &noneFoundErr{}

type noneFoundErr struct{}

func (*noneFoundErr) Error() string { return "no trading day found in window" }

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
