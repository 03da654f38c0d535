// Package dates implements the locale-aware date and currency heuristics
// used to pull deadlines, amounts and publication dates out of document
// text. All functions are pure; callers inject the reference time.
package dates

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// GraceMargin is the tolerance applied when deciding whether a deadline is
// still actionable: a date within one day in the past counts as future.
const GraceMargin = 24 * time.Hour

// ErrUnparseable marks text that matches no supported date form. It must
// stay distinguishable from "a valid date in the past" everywhere
// downstream.
var ErrUnparseable = errors.New("unrecognized date format")

var monthsPT = map[string]time.Month{
	"janeiro":   time.January,
	"fevereiro": time.February,
	"março":     time.March,
	"abril":     time.April,
	"maio":      time.May,
	"junho":     time.June,
	"julho":     time.July,
	"agosto":    time.August,
	"setembro":  time.September,
	"outubro":   time.October,
	"novembro":  time.November,
	"dezembro":  time.December,
}

var (
	dateRE = regexp.MustCompile(`(?i)\b(?:\d{1,2}[/\-.\s]\d{1,2}[/\-.\s]\d{2,4}|\d{1,2}\sde\s(?:janeiro|fevereiro|março|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\sde\s\d{4})`)

	longFormRE = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})`)

	brCurrencyRE      = regexp.MustCompile(`(?i)R\$\s?[0-9.,]{1,20}`)
	foreignCurrencyRE = regexp.MustCompile(`(?i)(?:US\$|\$|EUR|€)\s?[0-9.,]{1,20}`)
)

var pubDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)publicad[oa]\s+em\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
	regexp.MustCompile(`(?i)data\s+de\s+publica[çc][ãa]o\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
	regexp.MustCompile(`(?i)publica[çc][ãa]o\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
	regexp.MustCompile(`(?i)(\d{1,2}\s+de\s+\p{L}+\s+de\s+\d{4})`),
}

// pubDateWindow bounds the prefix scanned for a publication date; these
// labels live on the cover page when they exist at all.
const pubDateWindow = 3000

// Parse parses either the long Portuguese form ("23 de outubro de 2024")
// or numeric day-month-year with "/", "-" or "." separators. Two-digit
// years pivot at 50 (24 is 2024, 75 is 1975). Invalid calendar dates are
// rejected, never clamped.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseable
	}

	if m := longFormRE.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if month, ok := monthsPT[strings.ToLower(m[2])]; ok {
			if t, ok := calendarDate(year, month, day); ok {
				return t, nil
			}
		}
	}

	for _, sep := range []string{"/", "-", "."} {
		if !strings.Contains(s, sep) {
			continue
		}
		parts := strings.Split(s, sep)
		if len(parts) != 3 {
			continue
		}
		day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		if year < 100 {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		}
		if t, ok := calendarDate(year, time.Month(month), day); ok {
			return t, nil
		}
	}

	return time.Time{}, ErrUnparseable
}

// calendarDate builds a date and confirms the components survived, which
// rejects impossible dates like 31/02 that time.Date would normalize.
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Future reports whether t is today or later relative to now, with the
// one-day grace margin to tolerate clock skew between us and the source.
func Future(t, now time.Time) bool {
	return !t.Before(now.Add(-GraceMargin))
}

// Expired reports whether raw parses to a date strictly past the grace
// margin. Unparseable text never expires: a record is not discarded just
// because its date format is unrecognized.
func Expired(raw string, now time.Time) bool {
	t, err := Parse(raw)
	if err != nil {
		return false
	}
	return !Future(t, now)
}

// FindDeadline scans the whole text for date-shaped substrings and returns
// the literal text of the earliest future date, the closest actionable
// deadline. When no future date parses, it falls back to the last
// date-shaped substring: trailing dates tend to be footer or publication
// dates, kept as a best-effort signal. Empty when the text has no dates.
func FindDeadline(text string, now time.Time) string {
	matches := dateRE.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}

	var best time.Time
	bestRaw := ""
	for _, raw := range matches {
		t, err := Parse(raw)
		if err != nil || !Future(t, now) {
			continue
		}
		if bestRaw == "" || t.Before(best) {
			best, bestRaw = t, raw
		}
	}
	if bestRaw != "" {
		return bestRaw
	}
	return matches[len(matches)-1]
}

// FindAmount returns the literal text of the first local-currency amount
// in text, falling back to foreign-currency patterns only when no R$
// amount exists. The value is never parsed to a number; formats vary too
// much and only display fidelity is needed.
func FindAmount(text string) string {
	if m := brCurrencyRE.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	if m := foreignCurrencyRE.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

// FindPublicationDate searches the head of the document for a labeled
// publication date, trying the most specific label patterns first and
// falling back to a generic date scan of the same prefix. Only candidates
// that actually parse are returned.
func FindPublicationDate(text string) string {
	head := Prefix(text, pubDateWindow)

	for _, re := range pubDatePatterns {
		if m := re.FindStringSubmatch(head); m != nil {
			if _, err := Parse(m[1]); err == nil {
				return m[1]
			}
		}
	}

	found := dateRE.FindAllString(head, 3)
	for _, raw := range found {
		if _, err := Parse(raw); err == nil {
			return raw
		}
	}
	return ""
}

// FindAllDates returns every date-shaped substring in text, in text order.
func FindAllDates(text string) []string {
	return dateRE.FindAllString(text, -1)
}

// Prefix returns at most n bytes of s without splitting a UTF-8 sequence.
func Prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
