// Package core holds the bill domain: month keys, money parsing, and the
// entities shared by storage, services, and the web layer.
package core

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM". The format sorts
// chronologically under plain string comparison, which the storage layer
// relies on for carry-forward queries.
type MonthKey string

var ErrInvalidMonthKey = errors.New("month key must be formatted as YYYY-MM")

// ToMonthKey derives the month key of a date in local time.
func ToMonthKey(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// MakeMonthKey builds a key from numeric year and month.
func MakeMonthKey(year, month int) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// ParseMonthKey splits a key into year and month, validating the format.
func ParseMonthKey(key MonthKey) (year, month int, err error) {
	s := string(key)
	if len(s) != 7 || s[4] != '-' {
		return 0, 0, ErrInvalidMonthKey
	}
	year, err = strconv.Atoi(s[0:4])
	if err != nil {
		return 0, 0, ErrInvalidMonthKey
	}
	month, err = strconv.Atoi(s[5:7])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, ErrInvalidMonthKey
	}
	return year, month, nil
}

// PrevMonthKey returns the month before key, rolling over year boundaries.
// Invalid keys are returned unchanged.
func PrevMonthKey(key MonthKey) MonthKey {
	year, month, err := ParseMonthKey(key)
	if err != nil {
		return key
	}
	month--
	if month < 1 {
		month = 12
		year--
	}
	return MakeMonthKey(year, month)
}

// NextMonthKey returns the month after key, rolling over year boundaries.
// Invalid keys are returned unchanged.
func NextMonthKey(key MonthKey) MonthKey {
	year, month, err := ParseMonthKey(key)
	if err != nil {
		return key
	}
	month++
	if month > 12 {
		month = 1
		year++
	}
	return MakeMonthKey(year, month)
}

// DaysInMonth returns the calendar length of a month, leap years included.
func DaysInMonth(year, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.Local).Day()
}

// ClampDay limits a nominal due day to the length of the given month, so a
// template due on the 31st lands on Feb 28 (or 29 in leap years).
func ClampDay(year, month, day int) int {
	if day < 1 {
		return 1
	}
	if max := DaysInMonth(year, month); day > max {
		return max
	}
	return day
}

// MonthStart returns midnight on the first day of the month in local time.
func MonthStart(key MonthKey) (time.Time, error) {
	year, month, err := ParseMonthKey(key)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local), nil
}

// MonthEnd returns the last instant of the month in local time.
func MonthEnd(key MonthKey) (time.Time, error) {
	year, month, err := ParseMonthKey(key)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month)+1, 0, 23, 59, 59, int(time.Second-time.Nanosecond), time.Local), nil
}

// FormatMonthKeyMMYYYY renders a key as "MM-YYYY" for page titles. Invalid
// keys are returned as-is.
func FormatMonthKeyMMYYYY(key MonthKey) string {
	year, month, err := ParseMonthKey(key)
	if err != nil {
		return string(key)
	}
	return fmt.Sprintf("%02d-%04d", month, year)
}

// DiffDays counts whole calendar days from a to b at local midnights.
// Positive when b is after a.
func DiffDays(a, b time.Time) int {
	am := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.Local)
	bm := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.Local)
	return int(bm.Sub(am).Hours() / 24)
}
