package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/corvid-labs/chessplay/internal/board"
)

// Difficulty selects the fixed depth/time budget pair a BestMove call
// searches to. Four levels, per the documented table.
type Difficulty int

const (
	Beginner     Difficulty = 1
	Casual       Difficulty = 2
	Strong       Difficulty = 3
	Tournament   Difficulty = 4
	DefaultTTMB             = 64
	DefaultPawnMB           = 4
)

// difficultySetting is one row of the depth/time-budget table.
type difficultySetting struct {
	depth  int
	budget time.Duration
}

var difficultyTable = map[Difficulty]difficultySetting{
	Beginner:   {depth: 3, budget: 5 * time.Second},
	Casual:     {depth: 4, budget: 10 * time.Second},
	Strong:     {depth: 5, budget: 15 * time.Second},
	Tournament: {depth: 6, budget: 20 * time.Second},
}

// Engine is the single-threaded chess engine entry point: one transposition
// table and pawn cache shared across calls, one Searcher reused per call.
// Not safe for concurrent BestMove calls: the TT, pawn cache, killers,
// history, and the Searcher's cancellation flag are all process-state of
// this one instance; the TT and pawn cache are carried forward across calls
// by design, while killers and history are cleared at the start of each call
// (spec.md §4.6, §5). Callers serving concurrent requests (e.g. an HTTP handler) must
// serialize their own access, typically with a mutex around BestMove.
type Engine struct {
	tt        *TranspositionTable
	pawnTable *PawnTable
	searcher  *Searcher

	difficulty Difficulty
	depth      int
	budget     time.Duration

	logger *log.Logger
}

// NewEngine builds an engine at the given difficulty with default table
// sizes. The transposition and pawn tables persist for the engine's
// lifetime; BestMove never replaces them.
func NewEngine(difficulty Difficulty) *Engine {
	tt := NewTranspositionTable(DefaultTTMB)
	pawnTable := NewPawnTable(DefaultPawnMB)
	e := &Engine{
		tt:        tt,
		pawnTable: pawnTable,
		searcher:  NewSearcher(tt, pawnTable),
		logger:    log.Default(),
	}
	e.SetDifficulty(difficulty)
	return e
}

// SetLogger overrides the engine's logger. A nil logger disables logging
// without panicking: every log call below is guarded.
func (e *Engine) SetLogger(l *log.Logger) {
	e.logger = l
}

// SetDifficulty updates the depth/time budget used by future BestMove
// calls. Unknown levels fall back to Casual.
func (e *Engine) SetDifficulty(d Difficulty) {
	setting, ok := difficultyTable[d]
	if !ok {
		d = Casual
		setting = difficultyTable[Casual]
	}
	e.difficulty = d
	e.depth = setting.depth
	e.budget = setting.budget
}

// BestMoveResult reports the chosen move along with search statistics.
// Terminal is true when the position has no legal moves, in which case
// From/To/Promotion/SAN are all empty; the caller decides how to phrase
// checkmate vs. stalemate to the end user.
type BestMoveResult struct {
	From      string
	To        string
	Promotion string // "", "n", "b", "r", or "q"
	SAN       string
	Score     int
	Nodes     uint64
	Elapsed   time.Duration
	TimedOut  bool
	Terminal  bool
}

// BestMove parses the given FEN, searches to the engine's configured
// difficulty, and returns the chosen move. A malformed FEN is reported as
// an error; everything else the search core can produce (terminal
// position, timeout, internal panic) is reported through the result
// rather than as an error, per the engine's timeout-is-not-an-error
// contract.
func (e *Engine) BestMove(fen string) (result BestMoveResult, err error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return BestMoveResult{}, fmt.Errorf("bestmove: parse fen: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logf("engine: internal inconsistency during search, recovering: %v", r)
			fallback := e.safeFallback(pos)
			result = fallback
			err = nil
		}
	}()

	if pos.GenerateLegalMoves().Len() == 0 {
		return BestMoveResult{Terminal: true}, nil
	}

	e.tt.NewSearch()
	tm := NewTimeManager(e.budget)

	move, score, timedOut := e.searcher.Iterate(pos, e.depth, tm, func(r IterateResult) {
		e.logf("depth %d: move=%s score=%d nodes=%d elapsed=%s", r.Depth, r.Move, r.Score, e.searcher.Nodes(), tm.Elapsed())
	})
	timedOut = timedOut || tm.TimedOut()

	if move == board.NoMove {
		return BestMoveResult{Terminal: true, TimedOut: timedOut}, nil
	}

	return e.toResult(pos, move, score, tm.Elapsed(), timedOut), nil
}

// safeFallback is used only from BestMove's panic recovery: it tries to
// produce any legal move without touching the search core that just
// panicked, rather than propagating the panic to the caller.
func (e *Engine) safeFallback(pos *board.Position) BestMoveResult {
	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		return BestMoveResult{Terminal: true}
	}
	move := moves.Get(0)
	return e.toResult(pos, move, 0, 0, false)
}

// toResult converts a board.Move plus search stats into the public result
// shape, computing SAN against the pre-move position.
func (e *Engine) toResult(pos *board.Position, move board.Move, score int, elapsed time.Duration, timedOut bool) BestMoveResult {
	san := move.ToSAN(pos)

	promo := ""
	if move.IsPromotion() {
		promo = string([]byte{move.Promotion().Char()})
	}

	return BestMoveResult{
		From:      move.From().String(),
		To:        move.To().String(),
		Promotion: promo,
		SAN:       san,
		Score:     score,
		Nodes:     e.searcher.Nodes(),
		Elapsed:   elapsed,
		TimedOut:  timedOut,
	}
}

// logf logs through the engine's logger if one is configured.
func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// HashFull returns the permille of the transposition table currently
// occupied by entries from the most recent search generation.
func (e *Engine) HashFull() int {
	return e.tt.HashFull()
}

// ClearTables wipes the transposition and pawn caches, e.g. between
// unrelated games so stale entries from a prior game never leak in.
func (e *Engine) ClearTables() {
	e.tt.Clear()
	e.pawnTable.Clear()
}
