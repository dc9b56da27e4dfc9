package extensions

import (
	"cmp"
	"maps"
	"slices"
)

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// SortedKeys returns the keys of a map in ascending order, used wherever map iteration has to be stable
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// GroupBy buckets elements by the key returned from keyFunc, keeping input order inside a bucket
func GroupBy[T any, K comparable](elements []T, keyFunc func(T) K) map[K][]T {
	res := make(map[K][]T)
	for _, element := range elements {
		k := keyFunc(element)
		res[k] = append(res[k], element)
	}
	return res
}

func Min[T Number](a, b T) T {
	if a < b {
		return a
	}
	return b
}
