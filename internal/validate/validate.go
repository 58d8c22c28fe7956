package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"slackrelay/internal/failure"
)

var (
	integerPattern    = regexp.MustCompile(`^-?\d+$`)
	floatPattern      = regexp.MustCompile(`^-?\d+\.\d+$`)
	urlSchemePattern  = regexp.MustCompile(`^(http|https)://.+`)
	genericMacroShape = regexp.MustCompile(`^\{[$#]?[A-Z_.]+:?"?.*"?\}$`)

	booleanWords = map[string]bool{
		"1": true, "true": true, "yes": true, "on": true,
		"0": false, "false": false, "no": false, "off": false,
	}
)

// Validate checks every schema field against params in schema order.
// Params: ordered schema and decoded input which must be a JSON object.
// Returns: the same params mutated in place with typed values, or the first failure.
func Validate(schema Schema, input any) (Params, error) {
	var params Params
	switch typed := input.(type) {
	case Params:
		params = typed
	case map[string]any:
		params = Params(typed)
	default:
		return nil, failure.New(failure.KindConfiguration, "incorrect parameters value: the value must be an object")
	}
	if params == nil {
		return nil, failure.New(failure.KindConfiguration, "incorrect parameters value: the value must be an object")
	}
	for _, field := range schema {
		if err := Check(field.Name, field.Rule, params); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// Check coerces one parameter according to its rule and applies default fallback.
// Params: parameter key, rule, and mutable params.
// Returns: nil when value (or default) is accepted; categorized failure otherwise.
func Check(key string, rule Rule, params Params) error {
	if rule.Type == "" {
		return failure.Errorf(failure.KindMissingField, "mandatory attribute \"type\" has not been defined for parameter %q", key)
	}
	raw, ok := params[key]
	if !ok {
		return failure.Errorf(failure.KindMissingField, "checked parameter %q was not found in the list of input parameters", key)
	}

	value, problem, err := coerce(key, rule, raw)
	if err != nil {
		return err
	}
	params[key] = value
	if problem == "" {
		problem = checkConstraints(key, rule, raw, value)
	}
	if problem == "" {
		return nil
	}

	if fallback, ok := defaultFor(rule); ok {
		params[key] = fallback
		return nil
	}
	return failure.Errorf(failure.KindConfiguration, "incorrect value for variable %q: %s", key, problem)
}

// coerce converts raw input into the rule type.
// Params: key for messages, rule, and raw value.
// Returns: coerced value, soft problem eligible for default, or hard failure.
func coerce(key string, rule Rule, raw any) (any, string, error) {
	switch rule.Type {
	case TypeString:
		return coerceString(key, rule, raw)
	case TypeInteger:
		text := stringify(raw)
		if !IsInteger(text) {
			return raw, fmt.Sprintf("value %q must be an integer", key), nil
		}
		parsed, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return raw, fmt.Sprintf("value %q must be an integer", key), nil
		}
		return parsed, "", nil
	case TypeFloat:
		text := stringify(raw)
		if !IsFloat(text) {
			return raw, fmt.Sprintf("value %q must be a floating-point number", key), nil
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return raw, fmt.Sprintf("value %q must be a floating-point number", key), nil
		}
		return parsed, "", nil
	case TypeBoolean:
		if parsed, ok := booleanWords[strings.ToLower(stringify(raw))]; ok {
			return parsed, "", nil
		}
		return raw, fmt.Sprintf("value %q must be a boolean-like", key), nil
	case TypeArray:
		return coerceArray(key, rule, raw)
	case TypeObject:
		parsed, err := decodeJSON(raw)
		if err != nil {
			return raw, "", failure.Wrap(failure.KindConfiguration, err, fmt.Sprintf("value %q contains invalid JSON", key))
		}
		object, ok := parsed.(map[string]any)
		if !ok {
			return raw, "", failure.Errorf(failure.KindConfiguration, "value %q must be an object", key)
		}
		return object, "", nil
	default:
		return raw, "", failure.Errorf(failure.KindConfiguration,
			"unexpected attribute type %q for value %q. Available: integer, float, string, boolean, array, object", rule.Type, key)
	}
}

func coerceString(key string, rule Rule, raw any) (any, string, error) {
	value, ok := raw.(string)
	if !ok {
		return raw, "", failure.Errorf(failure.KindConfiguration, "value %q must be a string", key)
	}
	if IsEmpty(value) {
		return value, fmt.Sprintf("value %q must be a non-empty string", key), nil
	}

	problem := ""
	if rule.MinLen > 0 && len(value) < rule.MinLen {
		problem = fmt.Sprintf("value %q must be a string with a length > %d", key, rule.MinLen)
	}
	if rule.Regex != nil && !rule.Regex.MatchString(value) {
		problem = fmt.Sprintf("value %q must match the regular expression %q", key, rule.Regex.String())
	}
	if rule.URL {
		normalized, err := CheckURL(value)
		if err != nil {
			return value, "", err
		}
		value = normalized
	}
	return value, problem, nil
}

func coerceArray(key string, rule Rule, raw any) (any, string, error) {
	parsed, err := decodeJSON(raw)
	if err != nil {
		return raw, "", failure.Wrap(failure.KindConfiguration, err, fmt.Sprintf("value %q contains invalid JSON", key))
	}
	items, ok := parsed.([]any)
	if !ok {
		return parsed, fmt.Sprintf("value %q must be an array", key), nil
	}
	if !rule.Tags {
		return items, "", nil
	}
	return CollapseTags(items), "", nil
}

// CollapseTags reduces [{tag, value}] objects into a tag-name mapping.
// Params: decoded JSON array; entries without a string tag are ignored.
// Returns: mapping with nil for absent or empty values.
func CollapseTags(items []any) map[string]any {
	collapsed := make(map[string]any, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		tag, ok := entry["tag"].(string)
		if !ok {
			continue
		}
		value, present := entry["value"]
		if !present || value == "" {
			value = nil
		}
		collapsed[tag] = value
	}
	return collapsed
}

// checkConstraints evaluates range, membership, and macro checks in that order.
// Params: key, rule, raw input, and coerced value.
// Returns: first soft problem or "".
func checkConstraints(key string, rule Rule, raw, value any) string {
	if (rule.Type == TypeInteger || rule.Type == TypeFloat) && (rule.Min != nil || rule.Max != nil) {
		number, _ := toFloat(value)
		if !WithinRange(number, rule.Min, rule.Max) {
			return fmt.Sprintf("value %q must be a number %s", key, describeRange(rule.Min, rule.Max))
		}
	}
	if len(rule.OneOf) > 0 && !InSet(value, rule.OneOf) {
		encoded, _ := json.Marshal(rule.OneOf)
		return fmt.Sprintf("value %q must be in the array %s", key, encoded)
	}
	if rule.Macro != "" && !IsMacroSet(stringify(raw), rule.Macro) {
		return fmt.Sprintf("the macro {%s} is not set", rule.Macro)
	}
	return ""
}

func describeRange(minimum, maximum *float64) string {
	format := func(value float64) string { return strconv.FormatFloat(value, 'f', -1, 64) }
	switch {
	case minimum != nil && maximum != nil:
		return format(*minimum) + ".." + format(*maximum)
	case minimum != nil:
		return ">" + format(*minimum)
	default:
		return "<" + format(*maximum)
	}
}

// defaultFor returns the rule default when it has the rule's type.
// Params: rule.
// Returns: normalized default and true, or false when absent or mistyped.
func defaultFor(rule Rule) (any, bool) {
	switch fallback := rule.Default.(type) {
	case nil:
		return nil, false
	case string:
		return fallback, rule.Type == TypeString
	case int:
		return int64(fallback), rule.Type == TypeInteger
	case int64:
		return fallback, rule.Type == TypeInteger
	case float64:
		return fallback, rule.Type == TypeFloat
	case bool:
		return fallback, rule.Type == TypeBoolean
	case []any:
		return fallback, rule.Type == TypeArray && !rule.Tags
	case map[string]any:
		return fallback, rule.Type == TypeObject || (rule.Type == TypeArray && rule.Tags)
	default:
		return nil, false
	}
}

// IsInteger reports whether text is a signed decimal integer literal.
// Params: text.
// Returns: true on match.
func IsInteger(text string) bool {
	return integerPattern.MatchString(text)
}

// IsFloat reports whether text is a signed decimal literal with a fraction.
// Params: text.
// Returns: true on match.
func IsFloat(text string) bool {
	return floatPattern.MatchString(text)
}

// IsEmpty reports whether text is blank after trimming.
// Params: text.
// Returns: true for whitespace-only strings.
func IsEmpty(text string) bool {
	return strings.TrimSpace(text) == ""
}

// IsMacroSet reports whether a template macro was substituted.
// Params: value to check and macro name; empty macro checks the generic placeholder shape.
// Returns: false when the value still looks like the placeholder.
func IsMacroSet(value, macro string) bool {
	if macro != "" {
		return value != "{"+macro+"}"
	}
	return !(genericMacroShape.MatchString(value) || value == "*UNKNOWN*")
}

// WithinRange reports whether number lies in the inclusive range.
// Params: number and optional bounds.
// Returns: true when both present bounds hold.
func WithinRange(number float64, minimum, maximum *float64) bool {
	if minimum != nil && number < *minimum {
		return false
	}
	if maximum != nil && number > *maximum {
		return false
	}
	return true
}

// InSet reports membership; strings compare case-insensitively, numbers by value.
// Params: value and allowed set.
// Returns: true when value is in the set.
func InSet(value any, allowed []any) bool {
	text, isText := value.(string)
	number, isNumber := toFloat(value)
	for _, candidate := range allowed {
		if isText {
			if other, ok := candidate.(string); ok && strings.EqualFold(text, other) {
				return true
			}
			continue
		}
		if isNumber {
			if other, ok := toFloat(candidate); ok && other == number {
				return true
			}
			continue
		}
		if candidate == value {
			return true
		}
	}
	return false
}

// CheckURL requires an http(s) scheme and strips one trailing slash.
// Params: URL text.
// Returns: normalized URL or configuration failure.
func CheckURL(value string) (string, error) {
	if IsEmpty(value) {
		return "", failure.Errorf(failure.KindConfiguration, "URL value %q must be a non-empty string", value)
	}
	if !urlSchemePattern.MatchString(value) {
		return "", failure.Errorf(failure.KindConfiguration, "URL value %q must contain a schema", value)
	}
	return strings.TrimSuffix(value, "/"), nil
}

func decodeJSON(raw any) (any, error) {
	text, ok := raw.(string)
	if !ok {
		switch raw.(type) {
		case []any, map[string]any:
			return raw, nil
		}
		text = stringify(raw)
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

// stringify renders a decoded JSON value the way it appeared on input.
func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
}
