package rate

import (
	"strconv"
	"strings"
	"time"
)

// extractInts returns all integer substrings contained in s. Any non-digit
// character is a separator.
func extractInts(s string) []int64 {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	})
	nums := make([]int64, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.ParseInt(p, 10, 64); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}

// banUntil finds the millisecond timestamp in messages such as
// "Way too many requests; IP banned until 1700000000000."
func banUntil(msg string) (time.Time, bool) {
	for _, n := range extractInts(msg) {
		// 13 digits: epoch milliseconds between 2001 and 2286.
		if n >= 1e12 && n < 1e13 {
			return time.UnixMilli(n), true
		}
	}
	return time.Time{}, false
}
