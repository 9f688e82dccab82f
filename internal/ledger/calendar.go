package ledger

import (
	"fmt"
	"time"
)

const (
	DefaultCutoffHour = 4
	dayLayout         = "2006-01-02"
)

// BusinessDay is the window [cutoff on Date, cutoff on Date+1) in the shop's
// time zone.
type BusinessDay struct {
	Date  time.Time
	Start time.Time
	End   time.Time
}

func (d BusinessDay) Key() string {
	return d.Date.Format(dayLayout)
}

func (d BusinessDay) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// Calendar maps instants to business days.
type Calendar struct {
	loc        *time.Location
	cutoffHour int
}

func NewCalendar(loc *time.Location, cutoffHour int) Calendar {
	if loc == nil {
		loc = time.Local
	}
	if cutoffHour < 0 || cutoffHour > 23 {
		cutoffHour = DefaultCutoffHour
	}
	return Calendar{loc: loc, cutoffHour: cutoffHour}
}

func (c Calendar) Location() *time.Location {
	return c.loc
}

// DayOf returns the business day containing t. An instant before the cutoff
// hour belongs to the previous calendar date.
func (c Calendar) DayOf(t time.Time) BusinessDay {
	local := t.In(c.loc)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	if local.Hour() < c.cutoffHour {
		date = date.AddDate(0, 0, -1)
	}
	return c.forDate(date)
}

// Day parses a YYYY-MM-DD key into its business day.
func (c Calendar) Day(key string) (BusinessDay, error) {
	date, err := time.ParseInLocation(dayLayout, key, c.loc)
	if err != nil {
		return BusinessDay{}, fmt.Errorf("invalid business day %q: %w", key, err)
	}
	return c.forDate(date), nil
}

func (c Calendar) forDate(date time.Time) BusinessDay {
	start := time.Date(date.Year(), date.Month(), date.Day(), c.cutoffHour, 0, 0, 0, c.loc)
	next := date.AddDate(0, 0, 1)
	end := time.Date(next.Year(), next.Month(), next.Day(), c.cutoffHour, 0, 0, 0, c.loc)
	return BusinessDay{Date: date, Start: start, End: end}
}
