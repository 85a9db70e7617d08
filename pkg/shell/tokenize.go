package shell

import (
	"errors"
	"strings"
)

var (
	// ErrUnbalancedQuote reports an unterminated single or double quote.
	ErrUnbalancedQuote = errors.New("unbalanced quote")
	// ErrTrailingEscape reports a backslash with nothing after it.
	ErrTrailingEscape = errors.New("trailing escape")
)

// Tokenize splits a command line into whitespace-separated tokens with
// shell-style quoting: single quotes are literal, double quotes and bare
// text honor backslash escapes. This is tokenization only; there is no
// globbing, no variable expansion, and no operator syntax. Characters like
// | or $ pass through as ordinary text.
func Tokenize(line string) ([]string, error) {
	const (
		stateBare = iota
		stateSingle
		stateDouble
	)

	var tokens []string
	var cur strings.Builder
	state := stateBare
	escaped := false
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range line {
		if escaped {
			cur.WriteRune(r)
			inToken = true
			escaped = false
			continue
		}

		switch state {
		case stateSingle:
			if r == '\'' {
				state = stateBare
			} else {
				cur.WriteRune(r)
			}
		case stateDouble:
			switch r {
			case '"':
				state = stateBare
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		default:
			switch {
			case r == '\\':
				escaped = true
				inToken = true
			case r == '\'':
				state = stateSingle
				inToken = true
			case r == '"':
				state = stateDouble
				inToken = true
			case r == ' ' || r == '\t' || r == '\n' || r == '\r':
				flush()
			default:
				cur.WriteRune(r)
				inToken = true
			}
		}
	}

	if escaped {
		return nil, ErrTrailingEscape
	}
	if state != stateBare {
		return nil, ErrUnbalancedQuote
	}
	flush()
	return tokens, nil
}
