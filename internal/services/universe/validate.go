package universe

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

// ValidateData checks the universe, the daily mapping and the snapshot of
// every mapped ticker, collecting all problems into one ValidationError.
func ValidateData(ctx context.Context, stocks []models.Stock, mapping map[string]string, snapshots interfaces.SnapshotStore) error {
	verr := &models.ValidationError{Source: "data"}

	if err := Validate(stocks); err != nil {
		var uerr *models.ValidationError
		if errors.As(err, &uerr) {
			verr.Problems = append(verr.Problems, uerr.Problems...)
		} else {
			verr.Add("%v", err)
		}
	}

	lookup := NewLookup(stocks)
	days := make([]string, 0, len(mapping))
	for day := range mapping {
		days = append(days, day)
	}
	sort.Strings(days)

	mapped := make(map[string]bool)
	var order []string
	for _, day := range days {
		ticker := mapping[day]
		if _, err := common.ParseDay(day); err != nil {
			verr.Add("daily mapping key %q is not YYYY-MM-DD", day)
		}
		if _, ok := lookup.Find(ticker); !ok {
			verr.Add("daily mapping has unknown ticker %s on %s", ticker, day)
		}
		if !mapped[ticker] {
			mapped[ticker] = true
			order = append(order, ticker)
		}
	}

	for _, ticker := range order {
		snap, err := snapshots.GetSnapshot(ctx, ticker)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				verr.Add("missing snapshot for %s", ticker)
			} else {
				verr.Add("cannot read snapshot for %s: %v", ticker, err)
			}
			continue
		}
		if snap.SixMonth == nil {
			verr.Add("snapshot %s missing 6m array", ticker)
		}
		if math.IsNaN(snap.LastClose) || math.IsInf(snap.LastClose, 0) {
			verr.Add("snapshot %s has non-numeric lastClose", ticker)
		}
		for _, name := range []string{models.WindowOneMonth, models.WindowSixMonth, models.WindowOneYear} {
			if w := snap.Window(name); len(w) == 1 {
				verr.Add("snapshot %s window %s has a single point", ticker, name)
			}
		}
	}

	return verr.OrNil()
}
