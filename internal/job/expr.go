package job

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/born-ml/tensornet/internal/index"
)

// IndexTerm is one parsed index of an expression: a named index with an
// optional span or inverse span, or a fixed coordinate.
type IndexTerm struct {
	Name    string
	Span    int
	Inverse bool
	Fixed   bool
	Value   int
}

// String returns the term in expression syntax.
func (t IndexTerm) String() string {
	switch {
	case t.Fixed:
		return strconv.Itoa(t.Value)
	case t.Inverse:
		return fmt.Sprintf("%s&%d", t.Name, t.Span)
	case t.Span != 1:
		return fmt.Sprintf("%s^%d", t.Name, t.Span)
	default:
		return t.Name
	}
}

// ExprTerm is a parsed tensor expression such as A(i,j^2,k&1,3).
type ExprTerm struct {
	Tensor  string
	Indices []IndexTerm
}

// String returns the expression in its canonical syntax.
func (e ExprTerm) String() string {
	parts := make([]string, len(e.Indices))
	for k, t := range e.Indices {
		parts[k] = t.String()
	}
	return e.Tensor + "(" + strings.Join(parts, ",") + ")"
}

// ParseExpr parses an expression string. The grammar is
//
//	expr  = name [ "(" [ term { "," term } ] ")" ]
//	term  = integer | name [ ("^" | "&") integer ]
//
// where an integer term fixes a coordinate, "^n" gives an index span n and
// "&n" the inverse span n (all modes but n). A bare name is a scalar.
func ParseExpr(s string) (ExprTerm, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if !isName(s) {
			return ExprTerm{}, fmt.Errorf("%w: %q is not a tensor name", ErrSyntax, s)
		}
		return ExprTerm{Tensor: s}, nil
	}
	name := strings.TrimSpace(s[:open])
	if !isName(name) {
		return ExprTerm{}, fmt.Errorf("%w: %q is not a tensor name", ErrSyntax, name)
	}
	if !strings.HasSuffix(s, ")") {
		return ExprTerm{}, fmt.Errorf("%w: %q lacks a closing parenthesis", ErrSyntax, s)
	}

	e := ExprTerm{Tensor: name}
	body := strings.TrimSpace(s[open+1 : len(s)-1])
	if body == "" {
		return e, nil
	}
	for _, raw := range strings.Split(body, ",") {
		t, err := parseTerm(strings.TrimSpace(raw))
		if err != nil {
			return ExprTerm{}, fmt.Errorf("%s: %w", s, err)
		}
		e.Indices = append(e.Indices, t)
	}
	return e, nil
}

func parseTerm(s string) (IndexTerm, error) {
	if s == "" {
		return IndexTerm{}, fmt.Errorf("%w: empty index", ErrSyntax)
	}
	if v, err := strconv.Atoi(s); err == nil {
		if v < 0 {
			return IndexTerm{}, fmt.Errorf("%w: negative coordinate %d", ErrSyntax, v)
		}
		return IndexTerm{Fixed: true, Value: v, Span: 1}, nil
	}

	t := IndexTerm{Name: s, Span: 1}
	if k := strings.IndexAny(s, "^&"); k >= 0 {
		n, err := strconv.Atoi(s[k+1:])
		if err != nil || n < 0 {
			return IndexTerm{}, fmt.Errorf("%w: bad span in %q", ErrSyntax, s)
		}
		t.Name, t.Span, t.Inverse = s[:k], n, s[k] == '&'
	}
	if !isName(t.Name) {
		return IndexTerm{}, fmt.Errorf("%w: %q is not an index name", ErrSyntax, t.Name)
	}
	return t, nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for k, r := range s {
		if r == '_' || unicode.IsLetter(r) || k > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// Scope maps index names to indices. Names bound within one scope denote the
// same index, so a repeated name traces and a shared name contracts.
type Scope map[string]index.Index

// Bind turns the terms of e into indices, creating missing names in s.
func (s Scope) Bind(e ExprTerm) []index.Index {
	out := make([]index.Index, len(e.Indices))
	for k, t := range e.Indices {
		if t.Fixed {
			out[k] = index.Fixed(t.Value)
			continue
		}
		idx, ok := s[t.Name]
		if !ok {
			idx = index.New()
			s[t.Name] = idx
		}
		if t.Inverse {
			out[k] = idx.Inverse(t.Span)
		} else {
			out[k] = idx.WithSpan(t.Span)
		}
	}
	return out
}
