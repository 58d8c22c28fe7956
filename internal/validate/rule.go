package validate

import "regexp"

// Type names the expected value kind of one parameter.
// Params: one of the Type constants.
// Returns: coercion target for Check.
type Type string

const (
	// TypeString keeps the value as a non-empty string.
	TypeString Type = "string"
	// TypeInteger parses a signed decimal integer into int64.
	TypeInteger Type = "integer"
	// TypeFloat parses a signed decimal with fraction into float64.
	TypeFloat Type = "float"
	// TypeBoolean maps boolean-like words into bool.
	TypeBoolean Type = "boolean"
	// TypeArray parses a JSON array into []any.
	TypeArray Type = "array"
	// TypeObject parses a JSON object into map[string]any.
	TypeObject Type = "object"
)

// Rule describes constraints and fallback for one parameter.
// Params: type plus optional length, regex, url, range, membership, macro, default, and tag flags.
// Returns: declarative field specification consumed by Check.
type Rule struct {
	Type    Type
	MinLen  int
	Regex   *regexp.Regexp
	URL     bool
	Min     *float64
	Max     *float64
	OneOf   []any
	Macro   string
	Default any
	Tags    bool
}

// Field binds a parameter name to its rule.
// Params: parameter key and rule.
// Returns: one ordered schema entry.
type Field struct {
	Name string
	Rule Rule
}

// Schema is an ordered list of field rules; fields are checked in slice order.
// Params: field entries.
// Returns: validation schema.
type Schema []Field

// Params holds raw parameters before and typed parameters after validation.
// Params: string keys to decoded JSON values.
// Returns: mutable parameter set.
type Params map[string]any

// String returns a parameter as string when it holds one.
// Params: parameter key.
// Returns: string value and presence flag.
func (p Params) String(key string) (string, bool) {
	value, ok := p[key].(string)
	return value, ok
}

// Text returns a string parameter or empty string.
// Params: parameter key.
// Returns: string value or "".
func (p Params) Text(key string) string {
	value, _ := p.String(key)
	return value
}

// Has reports whether key is present, including explicit nulls.
// Params: parameter key.
// Returns: true when key exists.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Bound returns a pointer to a range bound for Rule.Min/Rule.Max literals.
// Params: numeric bound.
// Returns: pointer to copy of the bound.
func Bound(value float64) *float64 {
	return &value
}
