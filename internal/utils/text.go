package utils

// TruncateRunes returns s cut to at most max runes. Invalid UTF-8 bytes
// count as one rune each.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
