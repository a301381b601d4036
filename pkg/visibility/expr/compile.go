// Package expr compiles compact rule strings into schema conditions so
// schemas can be authored as
//
//	conditionalOn: numberOfTigers >= 5 && tigersAreOld == "Yes"
//
// Supported syntax:
//   - comparisons: `==`, `!=`, `>`, `>=`, `<`, `<=` between a field and a literal
//   - membership: `state in ["CA", "FL"]`
//   - truthiness: a bare field name (`enabled`)
//   - composition: `&&`, `||`, `!` and parentheses
//
// `&&` compiles to an all group, `||` to an any group and `!` to a not group,
// so the deferred semantics of those groups apply: a compound rule stays
// false until every field it mentions is answered.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// ErrSyntax wraps every compile failure.
var ErrSyntax = errors.New("visibility/expr: syntax error")

// Compile parses rule into a condition. An empty rule compiles to nil, which
// always holds.
func Compile(rule string) (schema.Condition, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	stream := &tokenStream{tokens: tokens}
	cond, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("%w: unexpected token %q", ErrSyntax, stream.tokens[stream.pos].raw)
	}
	return cond, nil
}

// MustCompile is Compile that panics on error, for static fixtures.
func MustCompile(rule string) schema.Condition {
	cond, err := Compile(rule)
	if err != nil {
		panic(err)
	}
	return cond
}

// Eval compiles rule and evaluates it against values.
func Eval(rule string, values visibility.Values) (bool, error) {
	cond, err := Compile(rule)
	if err != nil {
		return false, err
	}
	return visibility.Evaluate(cond, values), nil
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseOr(stream *tokenStream) (schema.Condition, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	terms := []schema.Condition{left}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return schema.Any(terms...), nil
}

func parseAnd(stream *tokenStream) (schema.Condition, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	terms := []schema.Condition{left}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return schema.All(terms...), nil
}

func parseUnary(stream *tokenStream) (schema.Condition, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return schema.Not(inner), nil
	}
	return parsePrimary(stream)
}

var comparisons = map[tokenKind]schema.ConditionalOperator{
	tokenEq:  schema.OpEquals,
	tokenNeq: schema.OpNotEquals,
	tokenGt:  schema.OpGreaterThan,
	tokenGte: schema.OpGreaterThanOrEqual,
	tokenLt:  schema.OpLessThan,
	tokenLte: schema.OpLessThanOrEqual,
}

func parsePrimary(stream *tokenStream) (schema.Condition, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, fmt.Errorf("%w: missing closing ')'", ErrSyntax)
		}
		return inner, nil
	}

	ident, ok := stream.consume(tokenIdentifier)
	if !ok {
		if stream.pos >= len(stream.tokens) {
			return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
		}
		return nil, fmt.Errorf("%w: expected field name, got %q", ErrSyntax, stream.tokens[stream.pos].raw)
	}

	if stream.pos < len(stream.tokens) {
		if op, isCompare := comparisons[stream.tokens[stream.pos].kind]; isCompare {
			stream.pos++
			value, err := stream.consumeLiteral()
			if err != nil {
				return nil, err
			}
			return &schema.Leaf{Key: ident.raw, Operator: op, Value: value}, nil
		}
	}
	if stream.match(tokenIn) {
		values, err := stream.consumeList()
		if err != nil {
			return nil, err
		}
		return &schema.Leaf{Key: ident.raw, Operator: schema.OpIn, Value: values}, nil
	}

	return schema.IsTruthy(ident.raw), nil
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) consume(kind tokenKind) (token, bool) {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return token{}, false
	}
	out := s.tokens[s.pos]
	s.pos++
	return out, true
}

func (s *tokenStream) consumeLiteral() (any, error) {
	if s.pos >= len(s.tokens) {
		return nil, fmt.Errorf("%w: missing literal", ErrSyntax)
	}
	tok := s.tokens[s.pos]
	s.pos++
	switch tok.kind {
	case tokenString:
		return tok.raw, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number literal %q", ErrSyntax, tok.raw)
		}
		return f, nil
	case tokenBool:
		return tok.raw == "true", nil
	case tokenNull:
		return nil, fmt.Errorf("%w: null comparisons never hold for unanswered fields; use a bare field or '!field'", ErrSyntax)
	case tokenIdentifier:
		// bare words are strings: `answer == Yes`
		return tok.raw, nil
	default:
		return nil, fmt.Errorf("%w: expected literal, got %q", ErrSyntax, tok.raw)
	}
}

func (s *tokenStream) consumeList() ([]any, error) {
	if !s.match(tokenLBracket) {
		return nil, fmt.Errorf("%w: expected '[' after in", ErrSyntax)
	}
	values := []any{}
	if s.match(tokenRBracket) {
		return values, nil
	}
	for {
		value, err := s.consumeLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		if s.match(tokenRBracket) {
			return values, nil
		}
		if !s.match(tokenComma) {
			return nil, fmt.Errorf("%w: expected ',' or ']' in list", ErrSyntax)
		}
	}
}
