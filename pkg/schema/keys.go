package schema

import (
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-formengine/internal/coerce"
)

// InstanceKey returns the field key of instance index of a repeated template
// key.
func InstanceKey(key string, index int) string {
	return key + "_" + strconv.Itoa(index)
}

// ParseInstanceKey reports whether key is an instance of template and returns
// its index. Only the exact shape "<template>_<digits>" matches.
func ParseInstanceKey(template, key string) (int, bool) {
	prefix := template + "_"
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	digits := key[len(prefix):]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return index, true
}

// MaxRepeatInstances caps how many instances a repeated section may have.
const MaxRepeatInstances = 500

// RepeatCount converts a count field's value into a number of instances.
// Missing, non-numeric, negative and NaN values yield zero; fractional values
// truncate; counts above MaxRepeatInstances are capped.
func RepeatCount(value any) int {
	n, _ := RawRepeatCount(value)
	return n
}

// RawRepeatCount is RepeatCount that also reports whether the cap applied.
func RawRepeatCount(value any) (int, bool) {
	f, ok := coerce.Number(value)
	if !ok || f < 1 || math.IsInf(f, -1) {
		return 0, false
	}
	if f > MaxRepeatInstances {
		return MaxRepeatInstances, true
	}
	return int(f), false
}

// RepeatArray enumerates [0, count).
func RepeatArray(count int) []int {
	if count <= 0 {
		return []int{}
	}
	out := make([]int, count)
	for i := range out {
		out[i] = i
	}
	return out
}
