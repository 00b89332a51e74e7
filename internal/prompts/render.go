package prompts

import (
	"fmt"
	"regexp"
	"strings"

	"brandmerch/internal/domain"
)

var slotPattern = regexp.MustCompile(`\{\{\s*([a-z0-9_]+)\s*\}\}`)

// Render substitutes every {{slot}} in tmpl. A declared variable without a
// value is a validation error; undeclared slots are left untouched.
func Render(tmpl domain.PromptTemplate, vars map[string]string) (string, error) {
	var missing []string
	for _, name := range tmpl.Variables {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: prompt %s is missing %s", domain.ErrValidation, tmpl.Name, strings.Join(missing, ", "))
	}
	declared := make(map[string]struct{}, len(tmpl.Variables))
	for _, name := range tmpl.Variables {
		declared[name] = struct{}{}
	}
	out := slotPattern.ReplaceAllStringFunc(tmpl.Template, func(m string) string {
		name := slotPattern.FindStringSubmatch(m)[1]
		if _, ok := declared[name]; !ok {
			return m
		}
		return vars[name]
	})
	return out, nil
}

// Slots returns the distinct slot names used in text, in order of appearance.
func Slots(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range slotPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
