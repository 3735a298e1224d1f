package market

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/models"
)

const (
	// SyntheticSource is the provenance tag of generated series.
	SyntheticSource = "synthetic"

	syntheticPoints = 300
	pcgIncrement    = 0x9E3779B97F4A7C15
)

// SyntheticSeed hashes "TICKER|YYYY-MM-DD" with 64-bit FNV-1a.
func SyntheticSeed(ticker string, day time.Time) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(ticker) + "|" + common.DayKey(day)))
	return h.Sum64()
}

// GenerateSynthetic produces a reproducible random walk of business-day closes
// ending on day. The same ticker and UTC day always yield identical output.
func GenerateSynthetic(ticker string, day time.Time) []models.DailyClose {
	seed := SyntheticSeed(ticker, day)
	rng := rand.New(rand.NewPCG(seed, seed^pcgIncrement))

	price := 20 + rng.Float64()*500
	drift := (rng.Float64() - 0.45) * 0.004
	vol := 0.01 + rng.Float64()*0.03

	dates := businessDaysEnding(common.UTCMidnight(day), syntheticPoints)
	out := make([]models.DailyClose, len(dates))
	for i, d := range dates {
		if i > 0 {
			price *= 1 + drift + vol*(rng.Float64()-0.5)
		}
		price = math.Max(1, math.Round(price*100)/100)
		out[i] = models.DailyClose{Date: d, Close: price}
	}
	return out
}

// businessDaysEnding returns n weekdays ending on or before end, oldest first.
func businessDaysEnding(end time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	d := end
	for i := n - 1; i >= 0; {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates[i] = d
			i--
		}
		d = d.AddDate(0, 0, -1)
	}
	return dates
}
