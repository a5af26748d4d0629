package naming

import (
	"path/filepath"
	"regexp"
	"strings"
)

const maxSanitizedLength = 200

var invalidFilenameRunes = map[rune]struct{}{
	'<': {}, '>': {}, ':': {}, '"': {}, '/': {}, '\\': {}, '|': {}, '?': {}, '*': {},
	'[': {}, ']': {}, '{': {}, '}': {}, '+': {}, '=': {}, '!': {}, '@': {}, '#': {},
	'$': {}, '%': {}, '^': {}, ',': {}, ';': {}, '\'': {}, '`': {}, '~': {},
}

var collapseRuns = regexp.MustCompile(`[\s_]+`)

// SanitizeFilename rewrites a filename into a form safe for every target
// filesystem: business abbreviations applied, invalid and control characters
// replaced, whitespace runs collapsed, and length capped while keeping the
// extension. Hyphens are preserved since the grammar depends on them.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "unnamed"
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	base = abbreviateClient(base)

	var b strings.Builder
	for _, r := range base {
		switch {
		case r < 32 || (r >= 127 && r <= 159):
			b.WriteRune('_')
		default:
			if _, bad := invalidFilenameRunes[r]; bad {
				b.WriteRune('_')
			} else {
				b.WriteRune(r)
			}
		}
	}

	safe := collapseRuns.ReplaceAllString(b.String(), "_")
	safe = strings.Trim(safe, "_. ")
	if safe == "" {
		safe = "unnamed"
	}

	limit := maxSanitizedLength - len(ext) - 10
	if limit > 0 && len(safe) > limit {
		safe = safe[:limit]
	}
	return safe + ext
}
