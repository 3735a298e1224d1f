package market

import (
	"testing"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestBuildWindows_Long(t *testing.T) {
	closes := seq(300)
	w := BuildWindows(closes)

	if len(w.OneMonth) != 22 {
		t.Errorf("OneMonth len = %d, want 22", len(w.OneMonth))
	}
	if len(w.SixMonth) != 132 {
		t.Errorf("SixMonth len = %d, want 132", len(w.SixMonth))
	}
	if len(w.OneYear) != 264 {
		t.Errorf("OneYear len = %d, want 264", len(w.OneYear))
	}
	if w.OneMonth[0] != 279 || w.OneMonth[21] != 300 {
		t.Errorf("OneMonth should be the trailing 22 points, got %v..%v", w.OneMonth[0], w.OneMonth[21])
	}
	if w.LastClose() != 300 {
		t.Errorf("LastClose = %v, want 300", w.LastClose())
	}
}

func TestBuildWindows_ShortSeriesReturnedWhole(t *testing.T) {
	closes := seq(10)
	w := BuildWindows(closes)

	for name, win := range map[string][]float64{"1m": w.OneMonth, "6m": w.SixMonth, "1y": w.OneYear} {
		if len(win) != 10 {
			t.Errorf("%s len = %d, want 10", name, len(win))
			continue
		}
		for i := range win {
			if win[i] != closes[i] {
				t.Errorf("%s[%d] = %v, want %v", name, i, win[i], closes[i])
			}
		}
	}
}

func TestBuildWindows_DoesNotAliasInput(t *testing.T) {
	closes := seq(5)
	w := BuildWindows(closes)
	closes[4] = 999
	if w.OneMonth[4] != 5 {
		t.Errorf("window aliases input slice")
	}
}

func TestBuildWindows_DegenerateSeries(t *testing.T) {
	for _, closes := range [][]float64{nil, {42}} {
		w := BuildWindows(closes)
		if len(w.OneMonth) != 0 || len(w.SixMonth) != 0 || len(w.OneYear) != 0 {
			t.Errorf("expected empty windows for %v, got %+v", closes, w)
		}
		if w.OneMonth == nil {
			t.Error("empty windows should be non-nil")
		}
		if w.LastClose() != 0 {
			t.Errorf("LastClose = %v, want 0", w.LastClose())
		}
	}
}

func TestComputeOneYearReturn(t *testing.T) {
	// closes[i] = i+1; reference is closes[260-253] = 8, last is 260.
	got := ComputeOneYearReturn(seq(260))
	if want := (260.0 - 8.0) / 8.0 * 100; got != want {
		t.Errorf("ComputeOneYearReturn = %v, want %v", got, want)
	}

	if got := ComputeOneYearReturn(seq(259)); got != 0 {
		t.Errorf("insufficient history should be 0, got %v", got)
	}

	closes := seq(300)
	closes[300-253] = 0
	if got := ComputeOneYearReturn(closes); got != 0 {
		t.Errorf("zero reference should be 0, got %v", got)
	}
}

func TestComputeOneYearReturn_Negative(t *testing.T) {
	closes := make([]float64, 270)
	for i := range closes {
		closes[i] = 100
	}
	closes[269] = 75
	if got := ComputeOneYearReturn(closes); got != -25 {
		t.Errorf("ComputeOneYearReturn = %v, want -25", got)
	}
}
