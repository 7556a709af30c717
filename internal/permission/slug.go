package permission

import (
	"strings"
	"unicode"
)

// Slugify turns a display name into a snake_case role name:
// "Custom QA Tester" becomes "custom_qa_tester".
func Slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '_' || r == '-' || unicode.IsSpace(r):
			pendingSep = true
		}
	}
	return b.String()
}
