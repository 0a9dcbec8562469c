package version

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// segments splits an identifier on '.' and '-'. Inner empty segments are kept
// and trailing empty segments are dropped, so "1..2" has three segments and
// "1.2." has two.
func segments(v string) []string {
	parts := strings.Split(strings.ReplaceAll(v, "-", "."), ".")
	if len(parts) == 1 {
		return parts
	}
	end := len(parts)
	for end > 0 && parts[end-1] == "" {
		end--
	}
	return parts[:end]
}

// Compare returns a positive number when a is newer than b, a negative number
// when b is newer, and 0 when neither is greater.
func Compare(a, b string) int {
	as, bs := segments(a), segments(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if cmp := compareSegment(as[i], bs[i]); cmp != 0 {
			return cmp
		}
	}
	return len(as) - len(bs)
}

// IsGreater reports whether a should be considered newer than b.
// Equal identifiers are never greater than each other.
func IsGreater(a, b string) bool {
	return Compare(a, b) > 0
}

// Newest returns the greatest identifier in ids, or "" for an empty slice.
// Ties keep the earliest entry.
func Newest(ids []string) string {
	newest := ""
	for i, id := range ids {
		if i == 0 || IsGreater(id, newest) {
			newest = id
		}
	}
	return newest
}

func compareSegment(a, b string) int {
	an, aerr := strconv.ParseInt(a, 10, 32)
	bn, berr := strconv.ParseInt(b, 10, 32)
	if aerr == nil && berr == nil {
		switch {
		case an > bn:
			return 1
		case an < bn:
			return -1
		}
		return 0
	}

	// Length decides before content for anything non-numeric.
	if cmp := utf16Len(a) - utf16Len(b); cmp != 0 {
		return cmp
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// utf16Len counts UTF-16 code units, the length installed identifiers were
// historically ordered by.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}
