package pattern

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/solatis/mailscore/internal/types"
)

// tokenStop lists the characters that end an unquoted argument.
const tokenStop = "~%=!|"

// extractToken reads one leaf argument. The token ends at unquoted whitespace
// or any tokenStop character. Double and single quotes group text; a
// backslash outside single quotes takes the next character literally; a
// trailing backslash is kept as is.
func extractToken(s string) (string, string) {
	var sb strings.Builder
	var quote byte
	i := 0
	for i < len(s) {
		ch := s[i]
		if quote == 0 {
			if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || strings.IndexByte(tokenStop, ch) >= 0 {
				break
			}
			if ch == '"' || ch == '\'' {
				quote = ch
				i++
				continue
			}
		} else if ch == quote {
			quote = 0
			i++
			continue
		}
		if ch == '\\' && quote != '\'' {
			i++
			if i == len(s) {
				sb.WriteByte('\\')
				break
			}
			ch = s[i]
		}
		sb.WriteByte(ch)
		i++
	}
	return sb.String(), s[i:]
}

// isLower reports whether s has no upper case letters.
func isLower(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func stringValue(marker byte, tok string) (Value, error) {
	switch marker {
	case '=':
		return Value{Kind: ValueString, Str: tok, IgnoreCase: isLower(tok)}, nil
	case '%':
		return Value{Kind: ValueGroup, Str: tok}, nil
	}

	icase := isLower(tok)
	src := tok
	if icase {
		src = "(?i)" + tok
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return Value{}, types.NewParseError(types.ErrInvalidRegex, tok)
	}
	return Value{Kind: ValueRegex, Str: tok, IgnoreCase: icase, Regex: re}, nil
}

// parseRange parses N, N-M, N-, -M, <N and >N. With sizes set, a number may
// carry a K or M suffix.
func parseRange(tok string, sizes bool) (Value, error) {
	invalid := types.NewParseError(types.ErrInvalidNumber, tok)
	v := Value{Kind: ValueRange, Min: 0, Max: Unbounded}

	switch tok[0] {
	case '<', '>', '-':
		n, rest, ok := parseNumber(tok[1:], sizes)
		if !ok || rest != "" {
			return Value{}, invalid
		}
		switch tok[0] {
		case '<':
			v.Max = n - 1
		case '>':
			if n == math.MaxInt64 {
				return Value{}, invalid
			}
			v.Min = n + 1
		default:
			v.Max = n
		}
		return v, nil
	}

	n, rest, ok := parseNumber(tok, sizes)
	if !ok {
		return Value{}, invalid
	}
	v.Min = n
	switch {
	case rest == "":
		v.Max = n
	case rest == "-":
	case rest[0] == '-':
		m, tail, ok := parseNumber(rest[1:], sizes)
		if !ok || tail != "" {
			return Value{}, invalid
		}
		v.Max = m
	default:
		return Value{}, invalid
	}
	return v, nil
}

// parseNumber reads leading decimal digits and an optional size suffix. A
// value that does not fit in an int64 is rejected.
func parseNumber(s string, sizes bool) (int64, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, s, false
	}
	rest := s[i:]
	if sizes && rest != "" {
		var mult int64
		switch rest[0] {
		case 'k', 'K':
			mult = 1024
		case 'm', 'M':
			mult = 1024 * 1024
		}
		if mult != 0 {
			if n > math.MaxInt64/mult {
				return 0, s, false
			}
			n *= mult
			rest = rest[1:]
		}
	}
	return n, rest, true
}
