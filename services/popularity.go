package services

import (
	"fmt"
	"strings"

	"artist-census/models"
)

// CurveBucket is the mean popularity of the samples in [From, To).
type CurveBucket struct {
	From, To int
	Samples  int
	Mean     float64
}

// BucketCurve groups samples into buckets of width offsets. Sentinel
// samples count toward no bucket; empty buckets are dropped.
func BucketCurve(samples []models.PopularitySample, width int) []CurveBucket {
	if width < 1 {
		width = 1
	}
	var out []CurveBucket
	for _, s := range samples {
		if s.Popularity == models.Missing {
			continue
		}
		from := s.Offset / width * width
		if len(out) == 0 || out[len(out)-1].From != from {
			out = append(out, CurveBucket{From: from, To: from + width})
		}
		b := &out[len(out)-1]
		b.Mean = (b.Mean*float64(b.Samples) + float64(s.Popularity)) / float64(b.Samples+1)
		b.Samples++
	}
	return out
}

// PrintPopularityCurve renders the bucketed curve of query to stdout.
// samples must be ordered by offset.
func PrintPopularityCurve(query string, samples []models.PopularitySample, width int) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  POPULARITY BY SEARCH OFFSET (%s)\033[0m\n", query)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
	fmt.Printf("  %s\n", thin)
	buckets := BucketCurve(samples, width)
	if len(buckets) == 0 {
		fmt.Println("  (no samples)")
	}
	for _, b := range buckets {
		fmt.Printf("  %4d-%-4d  \033[1;32m%6.2f\033[0m  %s\n",
			b.From, b.To-1, round2(b.Mean), strings.Repeat("█", int(b.Mean/2)))
	}
	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}
