package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/iota-uz/userimport/modules/userimport/domain/record"
)

const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"

	minYear = 1900
	maxYear = 2100

	// isoInstantLayout matches the UTC-midnight instants the API stores.
	isoInstantLayout = "2006-01-02T15:04:05.000Z"
)

// NormalizeRow builds the candidate record for data row number row.
// Only fields with a column in m are populated.
func NormalizeRow(row int, raw RawRow, m HeaderMapping) *record.ImportRecord {
	rec := record.New(row)
	for _, f := range m.Fields() {
		col, _ := m.Index(f)
		v := CleanText(raw.Cell(col))
		if f.IsDate() {
			rec.DateInputs[f] = v
			v = NormalizeDate(v)
		}
		rec.Set(f, v)
	}
	rec.GenderCode = NormalizeGender(rec.Gender)
	return rec
}

// CleanText repairs double-encoded text, composes it to NFC and trims it.
func CleanText(s string) string {
	s = repairMojibake(s)
	return strings.TrimSpace(norm.NFC.String(s))
}

var mojibakeDecoders = []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1}

// repairMojibake undoes UTF-8 text that was decoded as a single-byte charset
// ("JosÃ©" back to "José"). Text that does not round-trip is left alone.
func repairMojibake(s string) string {
	if !hasMojibakeMarker(s) {
		return s
	}
	for _, cm := range mojibakeDecoders {
		b, err := cm.NewEncoder().String(s)
		if err != nil {
			continue
		}
		if b != s && utf8.ValidString(b) {
			return b
		}
	}
	return s
}

func hasMojibakeMarker(s string) bool {
	for _, r := range s {
		if r == 'Ã' || r == 'Â' || r == 'â' || r == 'Ä' || r == 'Å' {
			return true
		}
	}
	return false
}

// NormalizeGender maps M/MALE and F/FEMALE to their codes. Anything else,
// including empty, becomes MALE; the validator rejects unknown tokens.
func NormalizeGender(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "F", GenderFemale:
		return GenderFemale
	default:
		return GenderMale
	}
}

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?$`)
	slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dashDateRe  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	serialRe    = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	yearRe      = regexp.MustCompile(`^\d{4}$`)
)

// NormalizeDate parses YYYY-MM-DD, MM/DD/YYYY, DD-MM-YYYY or an Excel serial
// date and returns a UTC-midnight ISO-8601 instant, or "" when s is not a
// real calendar date between 1900 and 2100.
func NormalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.Format(isoInstantLayout)
}

// ParseDate is NormalizeDate without the formatting.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return calendarDate(m[1], m[2], m[3])
	}
	// slash dates are read month-first
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		return calendarDate(m[3], m[1], m[2])
	}
	if m := dashDateRe.FindStringSubmatch(s); m != nil {
		return calendarDate(m[3], m[2], m[1])
	}
	if serialRe.MatchString(s) && !looksLikeYear(s) {
		return serialDate(s)
	}
	return time.Time{}, false
}

func calendarDate(ys, ms, ds string) (time.Time, bool) {
	y, err := strconv.Atoi(ys)
	if err != nil {
		return time.Time{}, false
	}
	mo, err := strconv.Atoi(ms)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(ds)
	if err != nil {
		return time.Time{}, false
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date rolls 31 April over to 1 May
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return inRange(t)
}

// looksLikeYear reports a bare year such as "1990". As a serial it would land
// in 1905, so it is rejected rather than silently shifted.
func looksLikeYear(s string) bool {
	if !yearRe.MatchString(s) {
		return false
	}
	y, err := strconv.Atoi(s)
	return err == nil && y >= minYear && y <= maxYear
}

func serialDate(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	y, mo, d := t.Date()
	return inRange(time.Date(y, mo, d, 0, 0, 0, 0, time.UTC))
}

func inRange(t time.Time) (time.Time, bool) {
	if t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, false
	}
	return t, true
}
