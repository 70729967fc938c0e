// Package template implements {{NAME}} placeholder scanning and substitution
// over nested configuration data (maps, slices, strings). Substitution is
// purely functional: inputs are never mutated, callers always receive a fresh
// deep copy with every placeholder resolved.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholderPattern matches {{NAME}} tokens inside string values. Whitespace
// directly inside the braces is tolerated ({{ NAME }} == {{NAME}}). Names are
// word characters only; anything else is not a placeholder and passes through
// untouched.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// MissingVariablesError reports every placeholder that had no value at
// substitution time. Names are sorted and deduplicated.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing required template variables: [%s]", strings.Join(e.Names, ", "))
}

// Vars walks data and returns the distinct placeholder names found in string
// values, sorted. Non-string leaves are ignored.
func Vars(data interface{}) []string {
	names := make(map[string]struct{})
	collectVars(data, names)

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func collectVars(data interface{}, names map[string]struct{}) {
	switch v := data.(type) {
	case string:
		for _, match := range placeholderPattern.FindAllStringSubmatch(v, -1) {
			names[match[1]] = struct{}{}
		}

	case map[string]interface{}:
		for _, value := range v {
			collectVars(value, names)
		}

	case map[string]string:
		for _, value := range v {
			collectVars(value, names)
		}

	case []interface{}:
		for _, item := range v {
			collectVars(item, names)
		}

	case []string:
		for _, item := range v {
			collectVars(item, names)
		}
	}
}

// Has reports whether data contains at least one placeholder.
func Has(data interface{}) bool {
	switch v := data.(type) {
	case string:
		return placeholderPattern.MatchString(v)

	case map[string]interface{}:
		for _, value := range v {
			if Has(value) {
				return true
			}
		}

	case map[string]string:
		for _, value := range v {
			if Has(value) {
				return true
			}
		}

	case []interface{}:
		for _, item := range v {
			if Has(item) {
				return true
			}
		}

	case []string:
		for _, item := range v {
			if Has(item) {
				return true
			}
		}
	}
	return false
}

// Substitute returns a deep copy of data with every placeholder replaced by
// its value. When any referenced variable is absent from values the whole
// operation fails with a *MissingVariablesError naming all absent variables
// at once; no partial substitution is ever returned. Variables present in
// values but never referenced are ignored.
func Substitute(data interface{}, values map[string]string) (interface{}, error) {
	var missing []string
	for _, name := range Vars(data) {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingVariablesError{Names: missing}
	}
	return substitute(data, values), nil
}

func substitute(data interface{}, values map[string]string) interface{} {
	switch v := data.(type) {
	case string:
		return placeholderPattern.ReplaceAllStringFunc(v, func(match string) string {
			name := placeholderPattern.FindStringSubmatch(match)[1]
			return values[name]
		})

	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = substitute(value, values)
		}
		return result

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, value := range v {
			result[key] = substitute(value, values).(string)
		}
		return result

	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = substitute(item, values)
		}
		return result

	case []string:
		result := make([]string, len(v))
		for i, item := range v {
			result[i] = substitute(item, values).(string)
		}
		return result

	default:
		return v
	}
}

// CheckSyntax scans data for strings whose braces do not pair up, returning a
// human-readable problem per offending string. Well-formed placeholders and
// strings without doubled braces produce no findings. Malformed tokens like
// "{{NAME}" are not treated as placeholders by Vars or Substitute, so this is
// the only way they surface.
func CheckSyntax(data interface{}) []string {
	var problems []string
	checkSyntax(data, &problems)
	return problems
}

func checkSyntax(data interface{}, problems *[]string) {
	switch v := data.(type) {
	case string:
		opening := strings.Count(v, "{{")
		closing := strings.Count(v, "}}")
		if opening != closing {
			*problems = append(*problems, fmt.Sprintf("unbalanced template braces in %q: %d opening, %d closing", v, opening, closing))
		}

	case map[string]interface{}:
		for _, value := range v {
			checkSyntax(value, problems)
		}

	case map[string]string:
		for _, value := range v {
			checkSyntax(value, problems)
		}

	case []interface{}:
		for _, item := range v {
			checkSyntax(item, problems)
		}

	case []string:
		for _, item := range v {
			checkSyntax(item, problems)
		}
	}
}
