package market

// Trailing window lengths in trading days.
const (
	OneMonthPoints = 22
	SixMonthPoints = 132
	OneYearPoints  = 264

	// ReturnMinPoints is the history required before a one-year return is reported.
	ReturnMinPoints = 260
	// ReturnLookback indexes the reference close from the end of the series.
	ReturnLookback = 253
)

// Windows holds the three trailing close windows, oldest first.
type Windows struct {
	OneMonth []float64
	SixMonth []float64
	OneYear  []float64
}

// BuildWindows slices the trailing N closes for each window. Shorter series
// are returned whole. A series with fewer than two points yields empty windows.
func BuildWindows(closes []float64) Windows {
	if len(closes) < 2 {
		return Windows{OneMonth: []float64{}, SixMonth: []float64{}, OneYear: []float64{}}
	}
	return Windows{
		OneMonth: trailing(closes, OneMonthPoints),
		SixMonth: trailing(closes, SixMonthPoints),
		OneYear:  trailing(closes, OneYearPoints),
	}
}

func trailing(closes []float64, n int) []float64 {
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	out := make([]float64, len(closes))
	copy(out, closes)
	return out
}

// LastClose returns the final element of the longest non-empty window, or 0.
func (w Windows) LastClose() float64 {
	longest := w.OneMonth
	for _, win := range [][]float64{w.SixMonth, w.OneYear} {
		if len(win) > len(longest) {
			longest = win
		}
	}
	if len(longest) == 0 {
		return 0
	}
	return longest[len(longest)-1]
}

// ComputeOneYearReturn returns the percentage change from the close 253
// points back to the last close. It is 0 with under 260 points or a zero reference.
func ComputeOneYearReturn(closes []float64) float64 {
	if len(closes) < ReturnMinPoints {
		return 0
	}
	last := closes[len(closes)-1]
	prior := closes[len(closes)-ReturnLookback]
	if prior == 0 {
		return 0
	}
	return (last - prior) / prior * 100
}
