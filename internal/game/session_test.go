package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeshavPeri/tickle/internal/models"
)

type stockMap map[string]models.Stock

func (m stockMap) Find(ticker string) (models.Stock, bool) {
	s, ok := m[ticker]
	return s, ok
}

type snapMap map[string]*models.Snapshot

func (m snapMap) GetSnapshot(_ context.Context, ticker string) (*models.Snapshot, error) {
	if s, ok := m[ticker]; ok {
		return s, nil
	}
	return nil, models.ErrNotFound
}

func testUniverse() stockMap {
	stocks := stockMap{}
	for _, s := range []models.Stock{
		{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Information Technology", Industry: "Technology Hardware", Dividend: true},
		{Ticker: "MSFT", Name: "Microsoft", Sector: "Information Technology", Industry: "Systems Software", Dividend: true},
		{Ticker: "AMZN", Name: "Amazon", Sector: "Consumer Discretionary", Industry: "Broadline Retail"},
		{Ticker: "META", Name: "Meta Platforms", Sector: "Communication Services", Industry: "Interactive Media"},
		{Ticker: "NVDA", Name: "Nvidia", Sector: "Information Technology", Industry: "Semiconductors", Dividend: true},
		{Ticker: "TSLA", Name: "Tesla", Sector: "Consumer Discretionary", Industry: "Automobiles"},
		{Ticker: "INTC", Name: "Intel", Sector: "Information Technology", Industry: "Semiconductors", Dividend: true},
		{Ticker: "KO", Name: "Coca-Cola Company", Sector: "Consumer Staples", Industry: "Soft Drinks", Dividend: true},
	} {
		stocks[s.Ticker] = s
	}
	return stocks
}

func answerSnapshot() *models.Snapshot {
	return &models.Snapshot{
		OneMonth:      []float64{95, 100},
		SixMonth:      []float64{80, 95, 100},
		OneYear:       []float64{70, 80, 95, 100},
		LastClose:     100,
		OneYearReturn: 30,
		MarketCapB:    3000,
		Insight:       "A hardware giant.",
		TopNews:       []models.NewsItem{{Headline: "Earnings beat", Source: "Wire"}},
	}
}

type recordingListener struct {
	mu          sync.Mutex
	results     []GuessResult
	transitions [][2]State
	hints       []Hint
	ticks       int
}

func (l *recordingListener) GuessEvaluated(r GuessResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *recordingListener) StateChanged(from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, [2]State{from, to})
}

func (l *recordingListener) HintRevealed(h Hint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hints = append(l.hints, h)
}

func (l *recordingListener) Tick(time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks++
}

func (l *recordingListener) tickCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ticks
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	u := testUniverse()
	s, err := NewSession(u["AAPL"], answerSnapshot(), u, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNewSession_RequiresAnswerSnapshot(t *testing.T) {
	u := testUniverse()
	_, err := NewSession(u["AAPL"], nil, u)
	assert.Error(t, err)

	_, err = NewSession(models.Stock{Ticker: "brk.b"}, answerSnapshot(), u)
	assert.Error(t, err)
}

func TestSession_InitialState(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, StateNotStarted, s.State())
	assert.Equal(t, 0, s.Attempts())
	assert.Equal(t, time.Duration(0), s.Elapsed())
	assert.Equal(t, 4, s.TickerLength())
	assert.Equal(t, MaxAttempts, s.MaxAttempts())
	assert.False(t, s.ClockRunning())
	assert.Nil(t, s.Reveal())
	assert.NotEmpty(t, s.ID())
}

func TestSession_WinStopsGame(t *testing.T) {
	listener := &recordingListener{}
	s := newTestSession(t, WithListener(listener))
	ctx := context.Background()

	r, err := s.Guess(ctx, "MSFT — Microsoft")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Attempt)
	assert.Equal(t, StateInProgress, r.State)
	assert.Nil(t, r.Reveal)

	r, err = s.Guess(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Attempt)
	assert.Equal(t, StateWon, r.State)
	assert.True(t, r.Evaluation.Correct)
	require.NotNil(t, r.Reveal)
	assert.True(t, r.Reveal.Won)
	assert.Equal(t, "AAPL", r.Reveal.Answer.Ticker)
	assert.Equal(t, "A hardware giant.", r.Reveal.Insight)
	assert.Len(t, r.Reveal.TopNews, 1)

	_, err = s.Guess(ctx, "NVDA")
	assert.ErrorIs(t, err, ErrGameOver)
	assert.Equal(t, 2, s.Attempts())

	assert.Equal(t, [][2]State{
		{StateNotStarted, StateInProgress},
		{StateInProgress, StateWon},
	}, listener.transitions)
	assert.Len(t, listener.results, 2)
	assert.Eventually(t, func() bool { return !s.ClockRunning() }, time.Second, 5*time.Millisecond)
}

func TestSession_LoseAfterMaxAttempts(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	wrong := []string{"MSFT", "AMZN", "META", "NVDA", "TSLA", "INTC"}
	for i, g := range wrong {
		r, err := s.Guess(ctx, g)
		require.NoError(t, err)
		assert.Equal(t, i+1, r.Attempt)
		if i < len(wrong)-1 {
			assert.Equal(t, StateInProgress, r.State)
		} else {
			assert.Equal(t, StateLost, r.State)
			require.NotNil(t, r.Reveal)
			assert.False(t, r.Reveal.Won)
			assert.Equal(t, 6, r.Reveal.Attempts)
		}
	}

	_, err := s.Guess(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrGameOver)
	assert.Equal(t, StateLost, s.State())
	require.NotNil(t, s.Reveal())
}

func TestSession_FirstGuessCorrect(t *testing.T) {
	listener := &recordingListener{}
	s := newTestSession(t, WithListener(listener))

	r, err := s.Guess(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, StateWon, r.State)
	assert.Equal(t, 1, r.Attempt)
	assert.Equal(t, [][2]State{
		{StateNotStarted, StateInProgress},
		{StateInProgress, StateWon},
	}, listener.transitions)
}

func TestSession_Rejections(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	assertReason := func(err error, want models.RejectReason) {
		t.Helper()
		var rej *models.GuessRejected
		require.True(t, errors.As(err, &rej), "got %v", err)
		assert.Equal(t, want, rej.Reason)
	}

	_, err := s.Guess(ctx, "")
	assertReason(err, models.RejectNoSelection)

	_, err = s.Guess(ctx, "ZZZZ")
	assertReason(err, models.RejectNoSelection)

	_, err = s.Guess(ctx, "KO — Coca-Cola Company")
	assertReason(err, models.RejectWrongLength)

	_, err = s.Guess(ctx, "MSFT")
	require.NoError(t, err)
	_, err = s.Guess(ctx, "msft")
	assertReason(err, models.RejectAlreadyGuessed)

	assert.Equal(t, 1, s.Attempts(), "rejections never consume an attempt")
	assert.Equal(t, StateInProgress, s.State())
}

func TestSession_RejectionBeforeStartKeepsClockStopped(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Guess(context.Background(), "KO")
	require.Error(t, err)
	assert.Equal(t, StateNotStarted, s.State())
	assert.False(t, s.ClockRunning())
}

func TestSession_BusyWhileGuessInFlight(t *testing.T) {
	s := newTestSession(t)

	s.guessing.Lock()
	_, err := s.Guess(context.Background(), "MSFT")
	s.guessing.Unlock()
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 0, s.Attempts())

	_, err = s.Guess(context.Background(), "MSFT")
	assert.NoError(t, err)
}

func TestSession_GameOverTakesPrecedenceOverBusy(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Guess(context.Background(), "AAPL")
	require.NoError(t, err)

	s.guessing.Lock()
	defer s.guessing.Unlock()
	_, err = s.Guess(context.Background(), "MSFT")
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestSession_ConcurrentGuessesNeverDoubleCount(t *testing.T) {
	s := newTestSession(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Guess(context.Background(), "MSFT")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Attempts())
}

func TestSession_NumericFeedbackUsesGuessSnapshot(t *testing.T) {
	snaps := snapMap{
		"MSFT": {LastClose: 110, OneYearReturn: 24, MarketCapB: 3100},
	}
	s := newTestSession(t, WithSnapshots(snaps))
	ctx := context.Background()

	r, err := s.Guess(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, NumericResult{Band: BandNear, Direction: DirectionDown}, r.Evaluation.LastClose)
	assert.Equal(t, NumericResult{Band: BandFar, Direction: DirectionUp}, r.Evaluation.OneYearReturn)
	assert.Equal(t, NumericResult{Band: BandMatch}, r.Evaluation.MarketCap)
	assert.Equal(t, Matched, r.Evaluation.Sector)

	// No cached snapshot: numeric fields are OFF without direction.
	r, err = s.Guess(ctx, "AMZN")
	require.NoError(t, err)
	assert.Equal(t, NumericResult{Band: BandOff}, r.Evaluation.LastClose)
	assert.Equal(t, NotMatched, r.Evaluation.Sector)
}

func TestSession_ElapsedUsesFirstGuess(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	s := newTestSession(t, WithClock(clock))
	ctx := context.Background()

	advance(time.Minute)
	assert.Equal(t, time.Duration(0), s.Elapsed())

	_, err := s.Guess(ctx, "MSFT")
	require.NoError(t, err)
	advance(30 * time.Second)
	assert.Equal(t, 30*time.Second, s.Elapsed())

	r, err := s.Guess(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), r.Reveal.ElapsedMs)

	advance(time.Hour)
	assert.Equal(t, 30*time.Second, s.Elapsed(), "clock is frozen after the game ends")
}

func TestSession_ClockTicksWhileInProgress(t *testing.T) {
	listener := &recordingListener{}
	s := newTestSession(t, WithListener(listener), WithTickInterval(2*time.Millisecond))

	_, err := s.Guess(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, s.ClockRunning())
	assert.Eventually(t, func() bool { return listener.tickCount() >= 3 }, time.Second, time.Millisecond)

	s.Close()
	assert.Eventually(t, func() bool { return !s.ClockRunning() }, time.Second, time.Millisecond)

	_, err = s.Guess(context.Background(), "AMZN")
	assert.ErrorIs(t, err, ErrGameOver)
	s.Close()
}

func TestSession_Hints(t *testing.T) {
	listener := &recordingListener{}
	s := newTestSession(t, WithListener(listener))

	h := s.CurrentHint()
	assert.Equal(t, 0, h.Stage)
	assert.True(t, h.CanReveal)
	assert.Empty(t, h.Sector)

	h, err := s.RevealHint()
	require.NoError(t, err)
	assert.Equal(t, 1, h.Stage)
	assert.Equal(t, "Information Technology", h.Sector)
	assert.Empty(t, h.Industry)
	assert.Equal(t, 14, h.LogoBlur)

	h, err = s.RevealHint()
	require.NoError(t, err)
	assert.Equal(t, "Technology Hardware", h.Industry)
	assert.Equal(t, 6, h.LogoBlur)

	h, err = s.RevealHint()
	require.NoError(t, err)
	assert.Equal(t, 3, h.Stage)
	assert.Equal(t, 0, h.LogoBlur)
	assert.False(t, h.CanReveal)

	h, err = s.RevealHint()
	assert.ErrorIs(t, err, ErrNoMoreHints)
	assert.Equal(t, 3, h.Stage)

	assert.Len(t, listener.hints, 3)
	assert.Equal(t, StateNotStarted, s.State(), "hints are independent of the game state")
}

func TestSession_SnapshotView(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Guess(context.Background(), "MSFT")
	require.NoError(t, err)

	v := s.Snapshot()
	assert.Equal(t, s.ID(), v.ID)
	assert.Equal(t, StateInProgress, v.State)
	assert.Equal(t, 1, v.Attempts)
	assert.Len(t, v.Guesses, 1)
	assert.Nil(t, v.Reveal)
}

func TestParseSelection(t *testing.T) {
	assert.Equal(t, "AAPL", ParseSelection("AAPL — Apple Inc."))
	assert.Equal(t, "AAPL", ParseSelection(" aapl "))
	assert.Equal(t, "BRKB", ParseSelection("brk.b"))
	assert.Equal(t, "KO", ParseSelection("KO - Coca-Cola Company"))
	assert.Equal(t, "", ParseSelection("—"))
}
