package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// MissingContextError reports placeholders whose context values are absent.
// It indicates a wiring problem: an upstream output the template references
// was never produced.
type MissingContextError struct {
	Stage string
	Keys  []string
}

func (e *MissingContextError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("stage %s: missing context keys: %s", e.Stage, strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("missing context keys: %s", strings.Join(e.Keys, ", "))
}

// Template is prompt text with named {placeholder} references to context
// values, typically upstream stage outputs.
type Template string

// Placeholders returns the distinct placeholder names in order of first use.
func (t Template) Placeholders() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(string(t), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Render substitutes every placeholder from ctx. It fails with
// MissingContextError iff at least one referenced key is absent; an empty
// string value counts as present.
func (t Template) Render(ctx map[string]string) (string, error) {
	var missing []string
	seen := make(map[string]bool)
	out := placeholderRe.ReplaceAllStringFunc(string(t), func(m string) string {
		key := m[1 : len(m)-1]
		val, ok := ctx[key]
		if !ok {
			if !seen[key] {
				seen[key] = true
				missing = append(missing, key)
			}
			return m
		}
		return val
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingContextError{Keys: missing}
	}
	return out, nil
}
