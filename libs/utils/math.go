package utils

import (
	"math"
	"sort"
)

// The functions return -1 for empty input.

func Max(data ...float64) float64 {
	if len(data) == 0 {
		return -1.0
	}

	res := data[0]
	for _, datum := range data {
		if datum > res {
			res = datum
		}
	}
	return res
}

func Min(data ...float64) float64 {
	if len(data) == 0 {
		return -1.0
	}

	res := data[0]
	for _, datum := range data {
		if datum < res {
			res = datum
		}
	}
	return res
}

// Median sorts a copy of data.
func Median(data ...float64) float64 {
	if len(data) == 0 {
		return -1.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func Avg(data ...float64) float64 {
	if len(data) == 0 {
		return -1.0
	}

	res := 0.0
	for _, datum := range data {
		res += datum
	}

	return res / float64(len(data))
}

// StdDev is the population standard deviation.
func StdDev(data ...float64) float64 {
	if len(data) == 0 {
		return -1.0
	}

	avg := Avg(data...)
	sum := 0.0
	for _, datum := range data {
		sum += (datum - avg) * (datum - avg)
	}
	return math.Sqrt(sum / float64(len(data)))
}
