// Package tmpl resolves {name} placeholders in command templates.
//
// Substitution is a single left-to-right scan of the template: each
// placeholder is looked up independently and text inserted for one
// placeholder is never scanned again. The result therefore does not depend
// on map iteration order, and a value that happens to contain "{other}"
// stays literal.
package tmpl

import "strings"

// Map holds the resolved value of every known token for one parameter
// combination.
type Map map[string]string

// Well-known tokens added to every Map besides the sweep parameters.
const (
	ProjectRoot = "project_root"
	RunDir      = "run_dir"
)

// Clone returns an independent copy of m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// token is one {name} occurrence at template[start:end].
type token struct {
	name       string
	start, end int
}

// scan reports every well-formed placeholder in template. A '{' without a
// matching '}' before the next '{', and the empty placeholder "{}", are not
// placeholders and are kept as literal text.
func scan(template string) []token {
	var tokens []token
	for i := 0; i < len(template); i++ {
		if template[i] != '{' {
			continue
		}
		j := strings.IndexAny(template[i+1:], "{}")
		if j < 0 {
			break
		}
		j += i + 1
		if template[j] == '{' || j == i+1 {
			i = j - 1
			continue
		}
		tokens = append(tokens, token{name: template[i+1 : j], start: i, end: j + 1})
		i = j
	}
	return tokens
}

// Substitute replaces every {key} in template whose key is present in m.
// Unknown placeholders and malformed braces are left unchanged.
func Substitute(template string, m Map) string {
	tokens := scan(template)
	if len(tokens) == 0 {
		return template
	}

	var sb strings.Builder
	sb.Grow(len(template))
	last := 0
	for _, tok := range tokens {
		value, ok := m[tok.name]
		if !ok {
			continue
		}
		sb.WriteString(template[last:tok.start])
		sb.WriteString(value)
		last = tok.end
	}
	sb.WriteString(template[last:])
	return sb.String()
}

// SubstituteAll resolves each template independently.
func SubstituteAll(templates []string, m Map) []string {
	if templates == nil {
		return nil
	}
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = Substitute(t, m)
	}
	return out
}

// Tokens returns the placeholder names referenced by template in order of
// first appearance.
func Tokens(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, tok := range scan(template) {
		if !seen[tok.name] {
			seen[tok.name] = true
			names = append(names, tok.name)
		}
	}
	return names
}

// Unresolved returns the placeholder names in template that m cannot
// resolve.
func Unresolved(template string, m Map) []string {
	var missing []string
	for _, name := range Tokens(template) {
		if _, ok := m[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
