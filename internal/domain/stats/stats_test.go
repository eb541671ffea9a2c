package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	require.Equal(t, 40.0, Percentage(4, 10))
	require.Equal(t, 0.0, Percentage(0, 0))
	require.Equal(t, 0.0, Percentage(3, 0))
	require.Equal(t, 33.33, Percentage(1, 3))
	require.Equal(t, 66.67, Percentage(2, 3))
	require.Equal(t, 100.0, Percentage(5, 5))
}

func TestRoundedAverage(t *testing.T) {
	require.Nil(t, RoundedAverage(nil))
	avg := 4.166666
	require.Equal(t, 4.17, *RoundedAverage(&avg))
}

func TestDistribution(t *testing.T) {
	counts := StarCounts{Five: 2, Four: 2, Three: 1}
	d := DistributionOf(counts, counts.Total())
	require.Equal(t, Distribution{FiveStar: 40, FourStar: 40, ThreeStar: 20}, d)

	require.Equal(t, Distribution{}, DistributionOf(StarCounts{}, 0))

	// 1/8 = 12.5% rounds up
	d = DistributionOf(StarCounts{One: 1, Five: 7}, 8)
	require.Equal(t, 13, d.OneStar)
	require.Equal(t, 88, d.FiveStar)
}
