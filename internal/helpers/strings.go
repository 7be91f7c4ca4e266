package helpers

// Truncate shortens the given string to at most n runes, appending " ..." if truncation occurs.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + " ..."
}

// FirstNonEmpty returns the first non-empty value, or an empty string.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
