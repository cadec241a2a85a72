package thaidate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Thai bank slips mix ISO dates, Buddhist-era years, Thai month names (full,
// dotted abbreviation, or informal two-character form) and 2-digit-year slash
// dates. Normalize maps all of them onto YYYY-MM-DD in the Common Era.

// Buddhist Era years are offset from Common Era by +543.
const beOffset = 543

// Years above this threshold are treated as Buddhist Era.
const beThreshold = 2400

// twoDigitPivot expands 2-digit years: "00".."40" become 20xx, "41".."99"
// become 19xx.
const twoDigitPivot = 40

type monthToken struct {
	token string
	month int
}

// Ordered longest-form first so a full name is never shadowed by the informal
// two-character form contained in another word.
var monthTokens = []monthToken{
	{"มกราคม", 1}, {"กุมภาพันธ์", 2}, {"มีนาคม", 3}, {"เมษายน", 4},
	{"พฤษภาคม", 5}, {"มิถุนายน", 6}, {"กรกฎาคม", 7}, {"สิงหาคม", 8},
	{"กันยายน", 9}, {"ตุลาคม", 10}, {"พฤศจิกายน", 11}, {"ธันวาคม", 12},
	{"ม.ค.", 1}, {"ก.พ.", 2}, {"มี.ค.", 3}, {"เม.ย.", 4},
	{"พ.ค.", 5}, {"มิ.ย.", 6}, {"ก.ค.", 7}, {"ส.ค.", 8},
	{"ก.ย.", 9}, {"ต.ค.", 10}, {"พ.ย.", 11}, {"ธ.ค.", 12},
	{"มค", 1}, {"กพ", 2}, {"มีค", 3}, {"เมย", 4},
	{"พค", 5}, {"มิย", 6}, {"กค", 7}, {"สค", 8},
	{"กย", 9}, {"ตค", 10}, {"พย", 11}, {"ธค", 12},
}

var (
	isoRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dmyRe     = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})$`)
	numericRe = regexp.MustCompile(`\d+`)
)

// Normalize converts a raw date value to a YYYY-MM-DD string. It never
// fails: when no interpretable date is found it returns the current local
// date and ok=false so callers can log the fallback as a data-quality
// signal.
func Normalize(raw string) (string, bool) {
	return NormalizeAt(raw, time.Now())
}

// NormalizeAt is Normalize with an explicit "today" for the fallback.
func NormalizeAt(raw string, now time.Time) (string, bool) {
	s := strings.TrimSpace(raw)

	// Already ISO. Slips printed with Buddhist-era years still need the
	// 543-year correction or every import would land five centuries ahead.
	if m := isoRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if year > beThreshold {
			year -= beOffset
		}
		if iso, ok := buildDate(year, month, day); ok {
			return iso, true
		}
	}

	// Thai month token anywhere in the string: take the first numeric run as
	// the day and the last as the year.
	if month, ok := findThaiMonth(s); ok {
		nums := numericRe.FindAllString(s, -1)
		if len(nums) > 0 {
			day, _ := strconv.Atoi(nums[0])
			year := expandYear(nums[len(nums)-1])
			if iso, ok := buildDate(year, month, day); ok {
				return iso, true
			}
		}
	}

	// Slash/dash/dot numeric date, day/month/year order.
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := expandYear(m[3])
		if iso, ok := buildDate(year, month, day); ok {
			return iso, true
		}
	}

	return now.Format("2006-01-02"), false
}

func findThaiMonth(s string) (int, bool) {
	for _, mt := range monthTokens {
		if strings.Contains(s, mt.token) {
			return mt.month, true
		}
	}
	return 0, false
}

// expandYear applies the 2-digit pivot and the Buddhist-era correction.
func expandYear(ys string) int {
	year, err := strconv.Atoi(ys)
	if err != nil {
		return 0
	}
	if len(ys) == 2 {
		if year <= twoDigitPivot {
			year += 2000
		} else {
			year += 1900
		}
	}
	if year > beThreshold {
		year -= beOffset
	}
	return year
}

// buildDate formats and round-trips the candidate through time.Parse so the
// returned string is always a real calendar date.
func buildDate(year, month, day int) (string, bool) {
	if year < 1000 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	iso := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if _, err := time.Parse("2006-01-02", iso); err != nil {
		return "", false
	}
	return iso, true
}
