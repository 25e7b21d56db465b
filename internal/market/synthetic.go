package market

import (
	"math/rand"
	"time"
)

// SyntheticSegment describes one stretch of a generated series with a fixed
// drift and volatility, used for demos and regime-separation tests.
type SyntheticSegment struct {
	Bars  int
	Drift float64 // mean per-bar return
	Vol   float64 // per-bar return stddev
}

// GenerateBars produces a deterministic synthetic OHLCV series by walking a
// price through the given segments. Volume is lognormal-ish around 1000
// and scales with the absolute return.
func GenerateBars(seed int64, start time.Time, interval time.Duration, segments ...SyntheticSegment) []Bar {
	rng := rand.New(rand.NewSource(seed))
	price := 100.0
	ts := start

	var bars []Bar
	for _, seg := range segments {
		for i := 0; i < seg.Bars; i++ {
			ret := seg.Drift + rng.NormFloat64()*seg.Vol
			open := price
			price = price * (1 + ret)
			if price < 0.01 {
				price = 0.01
			}
			high := open
			low := open
			if price > high {
				high = price
			}
			if price < low {
				low = price
			}
			high *= 1 + rng.Float64()*seg.Vol
			low *= 1 - rng.Float64()*seg.Vol

			volume := 1000 * (1 + 5*abs(ret) + 0.2*rng.Float64())
			bars = append(bars, Bar{
				Timestamp: ts,
				Open:      open,
				High:      high,
				Low:       low,
				Close:     price,
				Volume:    volume,
			})
			ts = ts.Add(interval)
		}
	}
	return bars
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
