package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	Morning uint64 = iota
	Afternoon
)

type Calendar struct {
	Days        uint64
	Slots       uint64
	Forbidden   []Sitting
	Discouraged []Sitting
	Labels      []string // Optional day labels, indexed by day
}

// CalendarSource is the reference a calendar is derived from: a term start anchor and the bank holidays of the term
type CalendarSource struct {
	TermStart       string    `yaml:"term_start"`
	BankHolidays    []string  `yaml:"bank_holidays"`
	TrailingHalfDay bool      `yaml:"trailing_half_day"`
	Discouraged     []Sitting `yaml:"discouraged"`
}

type CalendarError struct {
	Field  string
	Reason string
}

func (err *CalendarError) Error() string {
	return fmt.Sprintf("invalid calendar field %v: %v", err.Field, err.Reason)
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2 January 2006",
	"Monday 2 January 2006",
	"2 Jan 2006",
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, value); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}

// DeriveCalendar anchors the calendar on the first Monday on or after the term start. Weekends and bank holidays are
// forbidden, and so is the morning of the last weekday when a trailing half-day is requested
func DeriveCalendar(source CalendarSource, config Configuration) (Calendar, error) {
	if strings.TrimSpace(source.TermStart) == "" {
		return Calendar{}, &CalendarError{Field: "TermStart", Reason: "term start date not found"}
	}
	termStart, ok := parseDate(source.TermStart)
	if !ok {
		return Calendar{}, &CalendarError{Field: "TermStart", Reason: fmt.Sprintf("cannot parse %q", source.TermStart)}
	}

	holidays := make(map[time.Time]bool)
	for i, value := range source.BankHolidays {
		holiday, ok := parseDate(value)
		if !ok {
			return Calendar{}, &CalendarError{Field: fmt.Sprintf("BankHolidays[%v]", i), Reason: fmt.Sprintf("cannot parse %q", value)}
		}
		holidays[holiday] = true
	}

	anchor := termStart
	for anchor.Weekday() != time.Monday {
		anchor = anchor.AddDate(0, 0, 1)
	}

	calendar := Calendar{
		Days:      config.Days,
		Slots:     config.Slots,
		Forbidden: make([]Sitting, 0),
		Labels:    make([]string, 0, config.Days),
	}

	lastWeekday, hasWeekday := uint64(0), false
	for day := range config.Days {
		date := anchor.AddDate(0, 0, int(day))
		calendar.Labels = append(calendar.Labels, date.Format("Mon 02/01/2006"))

		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday || holidays[date] {
			for slot := range config.Slots {
				calendar.Forbidden = append(calendar.Forbidden, Sitting{Day: day, Slot: slot})
			}
			continue
		}
		lastWeekday, hasWeekday = day, true
	}
	if source.TrailingHalfDay && hasWeekday {
		calendar.Forbidden = append(calendar.Forbidden, Sitting{Day: lastWeekday, Slot: Morning})
	}

	calendar.Discouraged = lo.Filter(source.Discouraged, func(sitting Sitting, _ int) bool { return calendar.Contains(sitting) })
	slices.SortFunc(calendar.Forbidden, compareSittings)
	return calendar, nil
}

func (calendar Calendar) Contains(sitting Sitting) bool {
	return sitting.Day < calendar.Days && sitting.Slot < calendar.Slots
}

// Sittings enumerates every sitting of the calendar, day by day
func (calendar Calendar) Sittings() []Sitting {
	sittings := make([]Sitting, 0, calendar.Days*calendar.Slots)
	for day := range calendar.Days {
		for slot := range calendar.Slots {
			sittings = append(sittings, Sitting{Day: day, Slot: slot})
		}
	}
	return sittings
}

// Span returns every sitting between the first and the last day (both included), clamped to the calendar
func (calendar Calendar) Span(first, last uint64) []Sitting {
	sittings := make([]Sitting, 0)
	for day := first; day <= last && day < calendar.Days; day++ {
		for slot := range calendar.Slots {
			sittings = append(sittings, Sitting{Day: day, Slot: slot})
		}
	}
	return sittings
}

func (calendar Calendar) Label(sitting Sitting) string {
	slot := fmt.Sprintf("slot %v", sitting.Slot)
	switch {
	case calendar.Slots == 2 && sitting.Slot == Morning:
		slot = "morning"
	case calendar.Slots == 2 && sitting.Slot == Afternoon:
		slot = "afternoon"
	}

	if sitting.Day < uint64(len(calendar.Labels)) {
		return fmt.Sprintf("day %v (%v) %v", sitting.Day, calendar.Labels[sitting.Day], slot)
	}
	return fmt.Sprintf("day %v %v", sitting.Day, slot)
}

func compareSittings(a, b Sitting) int {
	if a.Day != b.Day {
		return cmp.Compare(a.Day, b.Day)
	}
	return cmp.Compare(a.Slot, b.Slot)
}
