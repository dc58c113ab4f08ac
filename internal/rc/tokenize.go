package rc

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is returned for a line that ends inside quotes.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Tokenize splits a command line into words. Words are separated by
// unquoted whitespace. Double and single quotes group text and are removed.
// A backslash outside single quotes takes the next character literally.
// An unquoted "#" at the start of a word begins a comment.
func Tokenize(line string) ([]string, error) {
	var (
		words  []string
		sb     strings.Builder
		quote  byte
		inWord bool
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]

		if quote != 0 {
			switch {
			case ch == quote:
				quote = 0
			case ch == '\\' && quote == '"' && i+1 < len(line):
				i++
				sb.WriteByte(line[i])
			default:
				sb.WriteByte(ch)
			}
			continue
		}

		switch ch {
		case ' ', '\t', '\r', '\n':
			if inWord {
				words = append(words, sb.String())
				sb.Reset()
				inWord = false
			}
		case '#':
			if !inWord {
				return words, nil
			}
			sb.WriteByte(ch)
		case '"', '\'':
			quote = ch
			inWord = true
		case '\\':
			inWord = true
			if i+1 < len(line) {
				i++
				sb.WriteByte(line[i])
			}
		default:
			inWord = true
			sb.WriteByte(ch)
		}
	}

	if quote != 0 {
		return nil, ErrUnterminatedQuote
	}
	if inWord {
		words = append(words, sb.String())
	}
	return words, nil
}
