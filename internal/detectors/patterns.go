package detectors

import "strings"

// firstMatch returns the first needle contained in text, in list order
func firstMatch(text string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return n, true
		}
	}
	return "", false
}

// searchText joins the lowercased fields a signature may appear in
func searchText(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "\n"))
}

func containsAny(text string, needles ...string) bool {
	_, ok := firstMatch(text, needles)
	return ok
}
