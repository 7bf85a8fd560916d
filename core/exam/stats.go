package exam

import (
	"github.com/montanaflynn/stats"

	"github.com/trezcool/masomo-results/core"
)

// Summarize computes the distribution of the marks of results, rounded to 2 decimals.
func Summarize(results []StudentResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	marks := make([]int, len(results))
	for i, r := range results {
		marks[i] = r.Mark
	}
	data := stats.LoadRawData(marks)

	// errors are only returned on empty input
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	stdDev, _ := stats.StandardDeviation(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)

	return Summary{
		Count:  len(marks),
		Mean:   core.Round(mean, 2),
		Median: core.Round(median, 2),
		StdDev: core.Round(stdDev, 2),
		Min:    int(min),
		Max:    int(max),
	}
}

// Average returns the mean of marks rounded to 2 decimals; 0 if there are none.
func Average(marks []StudentMark) float64 {
	if len(marks) == 0 {
		return 0
	}
	data := make(stats.Float64Data, len(marks))
	for i, m := range marks {
		data[i] = float64(m.Mark)
	}
	mean, _ := stats.Mean(data)
	return core.Round(mean, 2)
}
