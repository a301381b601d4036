package expr

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenGt
	tokenGte
	tokenLt
	tokenLte
	tokenIn
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenComma
)

type token struct {
	kind tokenKind
	raw  string
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '[', ']', ',', '!', '=', '&', '|', '<', '>', '"', '\'':
		return true
	default:
		return isSpace(ch)
	}
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func() byte {
		if i >= len(input) {
			return 0
		}
		return input[i]
	}
	emit := func(kind tokenKind, raw string) {
		tokens = append(tokens, token{kind: kind, raw: raw})
	}

	for i < len(input) {
		ch := input[i]
		if isSpace(ch) {
			i++
			continue
		}
		i++

		switch ch {
		case '(':
			emit(tokenLParen, "(")
		case ')':
			emit(tokenRParen, ")")
		case '[':
			emit(tokenLBracket, "[")
		case ']':
			emit(tokenRBracket, "]")
		case ',':
			emit(tokenComma, ",")
		case '!':
			if peek() == '=' {
				i++
				emit(tokenNeq, "!=")
				continue
			}
			emit(tokenNot, "!")
		case '=':
			if peek() != '=' {
				return nil, fmt.Errorf("%w: unexpected '='; use '=='", ErrSyntax)
			}
			i++
			emit(tokenEq, "==")
		case '>':
			if peek() == '=' {
				i++
				emit(tokenGte, ">=")
				continue
			}
			emit(tokenGt, ">")
		case '<':
			if peek() == '=' {
				i++
				emit(tokenLte, "<=")
				continue
			}
			emit(tokenLt, "<")
		case '&':
			if peek() != '&' {
				return nil, fmt.Errorf("%w: unexpected '&'; use '&&'", ErrSyntax)
			}
			i++
			emit(tokenAnd, "&&")
		case '|':
			if peek() != '|' {
				return nil, fmt.Errorf("%w: unexpected '|'; use '||'", ErrSyntax)
			}
			i++
			emit(tokenOr, "||")
		case '"', '\'':
			value, next, err := readString(input, i, ch)
			if err != nil {
				return nil, err
			}
			i = next
			emit(tokenString, value)
		default:
			start := i - 1
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				emit(tokenBool, strings.ToLower(raw))
			case "null", "nil":
				emit(tokenNull, "null")
			case "in":
				emit(tokenIn, "in")
			default:
				if looksLikeNumber(raw) {
					emit(tokenNumber, raw)
				} else {
					emit(tokenIdentifier, raw)
				}
			}
		}
	}

	return tokens, nil
}

// readString scans a quoted literal starting after the opening quote at
// input[start-1] and returns the unquoted value and the index after the
// closing quote.
func readString(input string, start int, quote byte) (string, int, error) {
	escaped := false
	for i := start; i < len(input); i++ {
		c := input[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c != quote {
			continue
		}
		body := input[start:i]
		if quote == '\'' {
			body = strings.ReplaceAll(body, `\'`, `'`)
			body = strings.ReplaceAll(body, `"`, `\"`)
		}
		value, err := strconv.Unquote(`"` + body + `"`)
		if err != nil {
			return "", 0, fmt.Errorf("%w: invalid string literal: %w", ErrSyntax, err)
		}
		return value, i + 1, nil
	}
	return "", 0, fmt.Errorf("%w: unterminated string literal", ErrSyntax)
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	if !(ch >= '0' && ch <= '9') && ch != '-' && ch != '+' && ch != '.' {
		return false
	}
	_, err := strconv.ParseFloat(raw, 64)
	return err == nil
}
