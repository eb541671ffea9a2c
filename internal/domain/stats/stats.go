// Package stats holds the rounding rules shared by attendance, feedback and
// report figures.
package stats

import "math"

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percentage returns part/whole*100 rounded to two decimals, or 0 when whole
// is zero.
func Percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return Round2(float64(part) / float64(whole) * 100)
}

// RoundedAverage rounds an optional average to two decimals.
func RoundedAverage(avg *float64) *float64 {
	if avg == nil {
		return nil
	}
	v := Round2(*avg)
	return &v
}

// StarCounts is a histogram of 1..5 ratings.
type StarCounts struct {
	Five  int `json:"five_star_count"`
	Four  int `json:"four_star_count"`
	Three int `json:"three_star_count"`
	Two   int `json:"two_star_count"`
	One   int `json:"one_star_count"`
}

func (c StarCounts) Total() int {
	return c.Five + c.Four + c.Three + c.Two + c.One
}

// Distribution is each star bucket as a whole percentage of total.
type Distribution struct {
	FiveStar  int `json:"five_star"`
	FourStar  int `json:"four_star"`
	ThreeStar int `json:"three_star"`
	TwoStar   int `json:"two_star"`
	OneStar   int `json:"one_star"`
}

// DistributionOf rounds each bucket's share of total to the nearest whole
// percent, halves rounding up. Every bucket is 0 when total is 0.
func DistributionOf(c StarCounts, total int) Distribution {
	share := func(n int) int {
		if total <= 0 {
			return 0
		}
		return int(math.Floor(float64(n)/float64(total)*100 + 0.5))
	}
	return Distribution{
		FiveStar:  share(c.Five),
		FourStar:  share(c.Four),
		ThreeStar: share(c.Three),
		TwoStar:   share(c.Two),
		OneStar:   share(c.One),
	}
}
