package pricing

import (
	"regexp"
	"strconv"
)

var packSizePattern = regexp.MustCompile(`(?i)pack\s*of\s*(\d+)`)

// ParsePackSize extracts N from the first "pack of N" in title, ignoring case.
// Titles such as "Pack of 2", "PACK OF 2" and "socks pack of 2 - special" all yield 2.
// A zero or overflowing N is not a pack size.
func ParsePackSize(title string) (int, bool) {
	m := packSizePattern.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
