package llm

import "strings"

// ResolveModel finds name among installed models. An untagged name matches
// its ":latest" tag.
func ResolveModel(installed []ModelInfo, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, m := range installed {
		if m.Name == name || m.Name == name+":latest" {
			return m.Name, true
		}
	}
	if base, ok := strings.CutSuffix(name, ":latest"); ok {
		for _, m := range installed {
			if m.Name == base {
				return m.Name, true
			}
		}
	}
	return "", false
}

// ModelNames returns the names of installed models in order.
func ModelNames(installed []ModelInfo) []string {
	out := make([]string, len(installed))
	for i, m := range installed {
		out[i] = m.Name
	}
	return out
}
