package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Alongside the {{type.path}} engine above, the resolver below handles the
// ${path} placeholder form used in node inputData: a bare dotted path looked
// up against a single flat variable bag, with the value's native type
// preserved when the placeholder is the whole string.

const (
	// ArraySentinel prefixes a stringified array so a later string coercion
	// can be reversed without losing elements.
	ArraySentinel = "__STRATIX_ARRAY__"

	// NullSentinel stands in for a null value in string position.
	NullSentinel = "__STRATIX_NULL__"
)

// placeholderPattern matches ${...} placeholders. The inner expression is
// validated separately so malformed paths are reported, not silently kept.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// pathPattern is the allowed shape of a placeholder expression:
// identifier(.identifier)*.
var pathPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// ErrMissingVariable is returned in strict mode when a placeholder's path has
// no value in the variable bag.
var ErrMissingVariable = fmt.Errorf("missing template variable")

// SubstitutionResult carries a resolved value plus the placeholder
// expressions that had no value in the bag (non-strict mode leaves those
// placeholders in place).
type SubstitutionResult struct {
	Value            interface{}
	MissingVariables []string
}

// ValidateTemplateExpression checks a single placeholder expression (the text
// between ${ and }, whitespace already allowed around it).
func ValidateTemplateExpression(expr string) error {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return fmt.Errorf("%w: empty expression '${%s}'", ErrInvalidTemplate, expr)
	}
	if !pathPattern.MatchString(trimmed) {
		return fmt.Errorf("%w: invalid expression '${%s}'", ErrInvalidTemplate, expr)
	}
	return nil
}

// SubstituteVariables resolves every ${path} placeholder in value against
// vars, recursively for maps and element-wise for slices. When a string is
// exactly one placeholder the looked-up value is returned at its native type;
// placeholders embedded in a larger string are stringified, arrays and nulls
// through their sentinels. In strict mode an unresolvable placeholder fails
// the whole substitution; otherwise it is left in place and reported in
// MissingVariables.
func SubstituteVariables(value interface{}, vars map[string]interface{}, strict bool) (*SubstitutionResult, error) {
	result := &SubstitutionResult{}
	resolved, err := substituteValue(value, vars, strict, result)
	if err != nil {
		return nil, err
	}
	result.Value = resolved
	return result, nil
}

func substituteValue(value interface{}, vars map[string]interface{}, strict bool, result *SubstitutionResult) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return substituteString(v, vars, strict, result)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			resolved, err := substituteValue(elem, vars, strict, result)
			if err != nil {
				return nil, fmt.Errorf("key '%s': %w", k, err)
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			resolved, err := substituteValue(elem, vars, strict, result)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func substituteString(s string, vars map[string]interface{}, strict bool, result *SubstitutionResult) (interface{}, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// Whole-string single placeholder keeps the value's native type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		expr := s[matches[0][2]:matches[0][3]]
		if err := ValidateTemplateExpression(expr); err != nil {
			return nil, err
		}
		path := strings.TrimSpace(expr)
		value, ok := LookupPath(vars, path)
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: '%s'", ErrMissingVariable, path)
			}
			result.MissingVariables = append(result.MissingVariables, path)
			return s, nil
		}
		return value, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		expr := s[m[2]:m[3]]
		if err := ValidateTemplateExpression(expr); err != nil {
			return nil, err
		}
		path := strings.TrimSpace(expr)
		value, ok := LookupPath(vars, path)
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: '%s'", ErrMissingVariable, path)
			}
			result.MissingVariables = append(result.MissingVariables, path)
			sb.WriteString(s[m[0]:m[1]])
		} else {
			sb.WriteString(stringifyValue(value))
		}
		last = m[1]
	}
	sb.WriteString(s[last:])

	return DecodeSentinels(sb.String()), nil
}

// LookupPath resolves a dotted path against the bag with first-hit
// semantics: the flat dotted key as-is, then a walk through nested maps.
func LookupPath(vars map[string]interface{}, path string) (interface{}, bool) {
	if vars == nil {
		return nil, false
	}
	if v, ok := vars[path]; ok {
		return v, true
	}

	segments := strings.Split(path, ".")
	if len(segments) < 2 {
		return nil, false
	}

	current, ok := vars[segments[0]]
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		m, isMap := current.(map[string]interface{})
		if !isMap {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringifyValue renders a value for embedding inside a larger string.
// Arrays and nulls go through their sentinels so the coercion is reversible.
func stringifyValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return NullSentinel
	case string:
		return v
	case []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return ArraySentinel + string(data)
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// DecodeSentinels restores a string that is exactly one sentinel-encoded
// value back to its native form. Strings that merely contain a sentinel among
// other text are left untouched.
func DecodeSentinels(s string) interface{} {
	if s == NullSentinel {
		return nil
	}
	if strings.HasPrefix(s, ArraySentinel) {
		var arr []interface{}
		if err := json.Unmarshal([]byte(s[len(ArraySentinel):]), &arr); err == nil {
			return arr
		}
	}
	return s
}
