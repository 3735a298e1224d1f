package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/models"
)

// MaxAttempts is the default number of accepted guesses before the game is lost.
const MaxAttempts = 6

// MaxHintStage caps the progressive hint disclosure.
const MaxHintStage = 3

// DefaultTickInterval is how often the running clock notifies the listener.
const DefaultTickInterval = 250 * time.Millisecond

// State is the session lifecycle.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateWon        State = "WON"
	StateLost       State = "LOST"
)

// Terminal reports whether no further guesses are accepted.
func (s State) Terminal() bool {
	return s == StateWon || s == StateLost
}

var (
	// ErrGameOver is returned for guesses after the session has ended.
	ErrGameOver = errors.New("game is over")
	// ErrBusy is returned when a guess arrives while another is being processed.
	ErrBusy = errors.New("a guess is already being processed")
	// ErrNoMoreHints is returned once every hint stage has been revealed.
	ErrNoMoreHints = errors.New("all hints revealed")
)

// StockLookup resolves a ticker to its universe entry.
type StockLookup interface {
	Find(ticker string) (models.Stock, bool)
}

// SnapshotSource reads cached snapshots for guessed tickers.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, ticker string) (*models.Snapshot, error)
}

// Listener receives session events. Tick is called from the clock goroutine.
type Listener interface {
	GuessEvaluated(result GuessResult)
	StateChanged(from, to State)
	HintRevealed(hint Hint)
	Tick(elapsed time.Duration)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) GuessEvaluated(GuessResult) {}
func (NopListener) StateChanged(State, State)  {}
func (NopListener) HintRevealed(Hint)          {}
func (NopListener) Tick(time.Duration)         {}

// GuessResult is returned for every accepted guess.
type GuessResult struct {
	Evaluation Evaluation `json:"evaluation"`
	Stock      StockCard  `json:"stock"`
	Attempt    int        `json:"attempt"`
	State      State      `json:"state"`
	Reveal     *Reveal    `json:"reveal,omitempty"`
}

// StockCard is the display form of a stock.
type StockCard struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Dividend string `json:"dividend"`
}

func displayStock(s models.Stock) StockCard {
	return StockCard{
		Ticker:   s.Ticker,
		Name:     s.Name,
		Sector:   s.Sector,
		Industry: s.Industry,
		Dividend: s.DividendText(),
	}
}

// Hint is the disclosure at one hint stage.
type Hint struct {
	Stage     int    `json:"stage"`
	Sector    string `json:"sector,omitempty"`
	Industry  string `json:"industry,omitempty"`
	LogoBlur  int    `json:"logoBlur"`
	Label     string `json:"label"`
	CanReveal bool   `json:"canReveal"`
}

// logo blur radius in pixels per stage
var hintBlur = [MaxHintStage + 1]int{0, 14, 6, 0}

var hintLabel = [MaxHintStage + 1]string{"", "Logo: blurred", "Logo: clearer", "Logo: full"}

// Reveal is shown once the game ends.
type Reveal struct {
	Answer        StockCard         `json:"answer"`
	Won           bool              `json:"won"`
	Attempts      int               `json:"attempts"`
	ElapsedMs     int64             `json:"elapsedMs"`
	LastClose     float64           `json:"lastClose"`
	OneYearReturn float64           `json:"oneYearReturn"`
	Insight       string            `json:"insight"`
	TopNews       []models.NewsItem `json:"topNews"`
}

// Options configures a Session.
type Option func(*Session)

// WithMaxAttempts overrides the attempt limit.
func WithMaxAttempts(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTickInterval overrides the clock period.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithListener sets the event listener.
func WithListener(l Listener) Option {
	return func(s *Session) {
		if l != nil {
			s.listener = l
		}
	}
}

// WithSnapshots sets where guessed tickers' snapshots are read from.
func WithSnapshots(src SnapshotSource) Option {
	return func(s *Session) { s.snapshots = src }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session is one player's game against one answer.
type Session struct {
	id          string
	answer      models.Stock
	answerSnap  *models.Snapshot
	answerAttrs Attributes

	stocks       StockLookup
	snapshots    SnapshotSource
	listener     Listener
	logger       *common.Logger
	now          func() time.Time
	maxAttempts  int
	tickInterval time.Duration

	// guessing serialises Guess; a second caller gets ErrBusy instead of waiting.
	guessing sync.Mutex

	mu        sync.RWMutex
	state     State
	attempts  int
	guessed   map[string]bool
	history   []GuessResult
	hintStage int
	startedAt time.Time
	endedAt   time.Time
	closed    bool

	clockStop chan struct{}
	clockDone chan struct{}
	clockOnce sync.Once
}

// NewSession creates a session for answer. The answer snapshot is required:
// every numeric comparison reads from it.
func NewSession(answer models.Stock, answerSnap *models.Snapshot, stocks StockLookup, opts ...Option) (*Session, error) {
	if answerSnap == nil {
		return nil, fmt.Errorf("answer snapshot for %s is required", answer.Ticker)
	}
	if !models.IsValidTicker(answer.Ticker) {
		return nil, fmt.Errorf("invalid answer ticker %q", answer.Ticker)
	}
	if stocks == nil {
		return nil, errors.New("stock lookup is required")
	}

	s := &Session{
		id:           uuid.New().String(),
		answer:       answer,
		answerSnap:   answerSnap,
		answerAttrs:  NewAttributes(answer, answerSnap),
		stocks:       stocks,
		listener:     NopListener{},
		logger:       common.NewSilentLogger(),
		now:          time.Now,
		maxAttempts:  MaxAttempts,
		tickInterval: DefaultTickInterval,
		state:        StateNotStarted,
		guessed:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID is the session identifier.
func (s *Session) ID() string { return s.id }

// TickerLength is the number of letters in the answer.
func (s *Session) TickerLength() int { return len(s.answer.Ticker) }

// MaxAttempts is the attempt limit for this session.
func (s *Session) MaxAttempts() int { return s.maxAttempts }

// AnswerSnapshot returns the answer's snapshot. Callers must not mutate it.
func (s *Session) AnswerSnapshot() *models.Snapshot { return s.answerSnap }

// AnswerTicker is used to look up assets such as the logo.
func (s *Session) AnswerTicker() string { return s.answer.Ticker }

// ParseSelection extracts a ticker from raw input such as "AAPL — Apple Inc."
// or "aapl". Only the part before a dash separator is considered.
func ParseSelection(raw string) string {
	for _, sep := range []string{"—", "–", " - "} {
		if i := strings.Index(raw, sep); i >= 0 {
			raw = raw[:i]
			break
		}
	}
	return models.NormalizeTicker(raw)
}

// Guess evaluates one selection. Rejections return *models.GuessRejected and
// never consume an attempt.
func (s *Session) Guess(ctx context.Context, selection string) (*GuessResult, error) {
	if s.State().Terminal() || s.isClosed() {
		return nil, ErrGameOver
	}
	if !s.guessing.TryLock() {
		return nil, ErrBusy
	}
	defer s.guessing.Unlock()

	if s.State().Terminal() || s.isClosed() {
		return nil, ErrGameOver
	}

	ticker := ParseSelection(selection)
	stock, ok := s.stocks.Find(ticker)
	if ticker == "" || !ok {
		return nil, &models.GuessRejected{Reason: models.RejectNoSelection, Ticker: ticker}
	}
	if len(ticker) != len(s.answer.Ticker) {
		return nil, &models.GuessRejected{Reason: models.RejectWrongLength, Ticker: ticker}
	}
	if s.alreadyGuessed(ticker) {
		return nil, &models.GuessRejected{Reason: models.RejectAlreadyGuessed, Ticker: ticker}
	}

	eval := Evaluate(NewAttributes(stock, s.snapshotFor(ctx, ticker)), s.answerAttrs)

	s.mu.Lock()
	from := s.state
	now := s.now()
	if s.state == StateNotStarted {
		s.state = StateInProgress
		s.startedAt = now
		s.startClockLocked()
	}
	s.attempts++
	s.guessed[ticker] = true

	switch {
	case eval.Correct:
		s.state = StateWon
	case s.attempts >= s.maxAttempts:
		s.state = StateLost
	}

	result := GuessResult{
		Evaluation: eval,
		Stock:      displayStock(stock),
		Attempt:    s.attempts,
		State:      s.state,
	}
	var transitions [][2]State
	if from == StateNotStarted {
		transitions = append(transitions, [2]State{StateNotStarted, StateInProgress})
	}
	if s.state.Terminal() {
		s.endedAt = now
		s.stopClockLocked()
		result.Reveal = s.revealLocked()
		transitions = append(transitions, [2]State{StateInProgress, s.state})
	}
	s.history = append(s.history, result)
	s.mu.Unlock()

	s.logger.Debug().
		Str("session", s.id).
		Str("guess", ticker).
		Int("attempt", result.Attempt).
		Str("state", string(result.State)).
		Msg("Guess evaluated")

	s.listener.GuessEvaluated(result)
	for _, t := range transitions {
		s.listener.StateChanged(t[0], t[1])
	}
	return &result, nil
}

func (s *Session) snapshotFor(ctx context.Context, ticker string) *models.Snapshot {
	if ticker == s.answer.Ticker {
		return s.answerSnap
	}
	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.GetSnapshot(ctx, ticker)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Guess snapshot unavailable")
		}
		return nil
	}
	return snap
}

func (s *Session) alreadyGuessed(ticker string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guessed[ticker]
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// RevealHint advances the hint stage by one. Hints do not depend on the game state.
func (s *Session) RevealHint() (Hint, error) {
	s.mu.Lock()
	if s.hintStage >= MaxHintStage {
		h := s.hintLocked()
		s.mu.Unlock()
		return h, ErrNoMoreHints
	}
	s.hintStage++
	h := s.hintLocked()
	s.mu.Unlock()

	s.listener.HintRevealed(h)
	return h, nil
}

// CurrentHint returns the hint for the current stage.
func (s *Session) CurrentHint() Hint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hintLocked()
}

func (s *Session) hintLocked() Hint {
	h := Hint{
		Stage:     s.hintStage,
		LogoBlur:  hintBlur[s.hintStage],
		Label:     hintLabel[s.hintStage],
		CanReveal: s.hintStage < MaxHintStage,
	}
	if s.hintStage >= 1 {
		h.Sector = s.answer.Sector
	}
	if s.hintStage >= 2 {
		h.Industry = s.answer.Industry
	}
	return h
}

func (s *Session) revealLocked() *Reveal {
	news := s.answerSnap.TopNews
	if news == nil {
		news = []models.NewsItem{}
	}
	return &Reveal{
		Answer:        displayStock(s.answer),
		Won:           s.state == StateWon,
		Attempts:      s.attempts,
		ElapsedMs:     s.elapsedLocked().Milliseconds(),
		LastClose:     s.answerSnap.LastClose,
		OneYearReturn: s.answerSnap.OneYearReturn,
		Insight:       s.answerSnap.Insight,
		TopNews:       news,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Attempts returns the number of accepted guesses.
func (s *Session) Attempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}

// Elapsed is zero before the first guess and frozen once the game ends.
func (s *Session) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	switch {
	case s.startedAt.IsZero():
		return 0
	case !s.endedAt.IsZero():
		return s.endedAt.Sub(s.startedAt)
	default:
		return s.now().Sub(s.startedAt)
	}
}

// Reveal returns the end-of-game payload, or nil while the game is running.
func (s *Session) Reveal() *Reveal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.Terminal() {
		return nil
	}
	return s.revealLocked()
}

// View is a point-in-time copy of the session for rendering.
type View struct {
	ID           string        `json:"id"`
	State        State         `json:"state"`
	TickerLength int           `json:"tickerLength"`
	Attempts     int           `json:"attempts"`
	MaxAttempts  int           `json:"maxAttempts"`
	ElapsedMs    int64         `json:"elapsedMs"`
	Guesses      []GuessResult `json:"guesses"`
	Hint         Hint          `json:"hint"`
	Reveal       *Reveal       `json:"reveal,omitempty"`
}

// Snapshot returns a View of the session.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{
		ID:           s.id,
		State:        s.state,
		TickerLength: len(s.answer.Ticker),
		Attempts:     s.attempts,
		MaxAttempts:  s.maxAttempts,
		ElapsedMs:    s.elapsedLocked().Milliseconds(),
		Guesses:      append([]GuessResult{}, s.history...),
		Hint:         s.hintLocked(),
	}
	if s.state.Terminal() {
		v.Reveal = s.revealLocked()
	}
	return v
}

// ClockRunning reports whether the tick goroutine is active.
func (s *Session) ClockRunning() bool {
	s.mu.RLock()
	done := s.clockDone
	s.mu.RUnlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Close stops the clock and rejects further guesses. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopClockLocked()
	s.mu.Unlock()
}

func (s *Session) startClockLocked() {
	if s.closed || s.clockStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.clockStop = stop
	s.clockDone = done

	interval := s.tickInterval
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				s.listener.Tick(s.Elapsed())
			}
		}
	}()
}

func (s *Session) stopClockLocked() {
	if s.clockStop == nil {
		return
	}
	s.clockOnce.Do(func() { close(s.clockStop) })
}
