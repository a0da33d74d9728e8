package input

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// Policy decides what happens to tokens that are not numbers
type Policy string

const (
	// PolicyStrict rejects the whole input on the first bad token
	PolicyStrict Policy = "strict"
	// PolicyPassthrough keeps bad tokens as NaN (sent as null) and empty
	// tokens as 0, matching what the browser client sent
	PolicyPassthrough Policy = "passthrough"
)

// ErrEmpty is returned in strict mode when there is nothing to parse
var ErrEmpty = errors.New("no expression values entered")

// ParseError names the first token that failed strict parsing
type ParseError struct {
	Index int
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("value %d (%q) is not a finite number", e.Index+1, e.Token)
}

// ParsePolicy maps a config/flag string to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyPassthrough:
		return PolicyPassthrough, nil
	}
	return "", fmt.Errorf("unknown nan policy %q (use strict or passthrough)", s)
}

// Tokens splits comma-separated input. The token count is always the
// number of commas plus one.
func Tokens(text string) []string {
	return strings.Split(text, ",")
}

// Parse converts comma-separated text into expression values
func Parse(text string, policy Policy) (types.Values, error) {
	if policy == PolicyStrict && strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	tokens := Tokens(text)
	values := make(types.Values, len(tokens))
	for i, tok := range tokens {
		trimmed := strings.TrimSpace(tok)
		if trimmed == "" {
			if policy == PolicyStrict {
				return nil, &ParseError{Index: i, Token: tok}
			}
			values[i] = 0
			continue
		}

		f, ok := jsNumber(trimmed)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			if policy == PolicyStrict {
				return nil, &ParseError{Index: i, Token: trimmed}
			}
			// non-finite values encode as null either way
			values[i] = math.NaN()
			continue
		}
		values[i] = f
	}

	return values, nil
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// jsNumber parses a trimmed token with the grammar browsers use for
// Number(s): signed decimals with an optional exponent, "Infinity", and
// unsigned 0x, 0o and 0b integers. Go-only forms such as "inf", hex floats
// and digit underscores are rejected.
func jsNumber(s string) (float64, bool) {
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return radixInteger(s[2:], base)
		}
	}

	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	// out of range overflows to ±Inf like the browser does
	return f, true
}

// radixInteger accumulates digits in base. Values past 2^53 lose precision
// the same way a float64 does.
func radixInteger(digits string, base int) (float64, bool) {
	v := 0.0
	for _, r := range digits {
		d, err := strconv.ParseUint(string(r), base, 8)
		if err != nil {
			return 0, false
		}
		v = v*float64(base) + float64(d)
	}
	return v, true
}

// Chart derives the bar chart dataset for text input
func Chart(values types.Values) *types.ChartDataset {
	labels := make([]string, len(values))
	for i := range values {
		labels[i] = fmt.Sprintf("Gene %d", i+1)
	}
	data := make(types.Values, len(values))
	copy(data, values)
	return &types.ChartDataset{
		Label:  "Expression Value",
		Labels: labels,
		Values: data,
	}
}
