package asics

import "fmt"

// NextUnusedName returns the first prefix+NNN+suffix, counting up from start, that is not in names.
// The counter is zero-padded to three digits and grows wider past 999.
func NextUnusedName(names []string, prefix, suffix string, start int) string {
	used := make(map[string]struct{}, len(names))
	for _, n := range names {
		used[n] = struct{}{}
	}
	for i := start; ; i++ {
		candidate := fmt.Sprintf("%s%03d%s", prefix, i, suffix)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}
