package pattern

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/mailscore/internal/types"
)

// Dates outside these years are rejected.
const (
	minYear = 1
	maxYear = 9999
	maxDays = maxYear * 366
)

// parseDate parses the argument of ~d and ~r into a range of Unix seconds.
//
// Relative forms, resolved against now:
//
//	<3d   younger than three days
//	>2w   older than two weeks
//	=1m   exactly one month ago, the whole day
//
// Units are y m w d H M S. Absolute forms use DD[/MM[/YY[YY]]], missing parts
// taken from now: "15/3/2024", "1/1-31/1", "1/6-", "-31/12/2023". Absolute
// bounds cover whole days.
func parseDate(tok string, now time.Time) (Value, error) {
	invalid := types.NewParseError(types.ErrInvalidDate, tok)
	v := Value{Kind: ValueDate, Min: 0, Max: Unbounded}

	switch tok[0] {
	case '<', '>', '=':
		t, ok := offset(tok[1:], now)
		if !ok {
			return Value{}, invalid
		}
		switch tok[0] {
		case '<':
			v.Min = t.Unix()
			v.Max = now.Unix()
		case '>':
			v.Max = t.Unix()
		default:
			v.Min = startOfDay(t).Unix()
			v.Max = endOfDay(t).Unix()
		}
		return v, nil
	}

	if strings.HasPrefix(tok, "-") {
		t, rest, ok := absolute(tok[1:], now)
		if !ok || rest != "" {
			return Value{}, invalid
		}
		v.Max = endOfDay(t).Unix()
		return v, nil
	}

	t, rest, ok := absolute(tok, now)
	if !ok {
		return Value{}, invalid
	}
	v.Min = startOfDay(t).Unix()
	switch {
	case rest == "":
		v.Max = endOfDay(t).Unix()
	case rest == "-":
	case rest[0] == '-':
		end, tail, ok := absolute(rest[1:], now)
		if !ok || tail != "" {
			return Value{}, invalid
		}
		v.Max = endOfDay(end).Unix()
	default:
		return Value{}, invalid
	}
	return v, nil
}

// offset parses "<N><unit>" and returns now moved back by that amount.
func offset(s string, now time.Time) (time.Time, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i != len(s)-1 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return time.Time{}, false
	}

	var t time.Time
	switch s[i] {
	case 'y':
		if n > maxYear {
			return time.Time{}, false
		}
		t = now.AddDate(-n, 0, 0)
	case 'm':
		if n > maxYear*12 {
			return time.Time{}, false
		}
		t = now.AddDate(0, -n, 0)
	case 'w':
		if n > maxDays/7 {
			return time.Time{}, false
		}
		t = now.AddDate(0, 0, -7*n)
	case 'd':
		if n > maxDays {
			return time.Time{}, false
		}
		t = now.AddDate(0, 0, -n)
	case 'H':
		return shift(now, n, time.Hour)
	case 'M':
		return shift(now, n, time.Minute)
	case 'S':
		return shift(now, n, time.Second)
	default:
		return time.Time{}, false
	}
	return t, inYearRange(t)
}

// shift moves now back by n units, rejecting amounts a Duration cannot hold.
func shift(now time.Time, n int, unit time.Duration) (time.Time, bool) {
	if int64(n) > math.MaxInt64/int64(unit) {
		return time.Time{}, false
	}
	t := now.Add(-time.Duration(n) * unit)
	return t, inYearRange(t)
}

func inYearRange(t time.Time) bool {
	return t.Year() >= minYear && t.Year() <= maxYear
}

// absolute parses DD[/MM[/YY[YY]]] from the front of s.
func absolute(s string, now time.Time) (time.Time, string, bool) {
	fields := [3]int{0, int(now.Month()), now.Year()}
	rest := s
	for i := 0; i < 3; i++ {
		j := 0
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		if j == 0 {
			return time.Time{}, s, false
		}
		n, err := strconv.Atoi(rest[:j])
		if err != nil {
			return time.Time{}, s, false
		}
		if i == 2 && j <= 2 {
			if n < 70 {
				n += 2000
			} else {
				n += 1900
			}
		}
		fields[i] = n
		rest = rest[j:]
		if !strings.HasPrefix(rest, "/") || i == 2 {
			break
		}
		rest = rest[1:]
	}

	day, month, year := fields[0], fields[1], fields[2]
	if month < 1 || month > 12 || day < 1 || year < minYear || year > maxYear {
		return time.Time{}, s, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if t.Day() != day {
		return time.Time{}, s, false
	}
	return t, rest, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
