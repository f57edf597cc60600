package engine

import (
	"github.com/corvid-labs/chessplay/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128

	nullMoveReduction     = 2
	nullMoveMinMaterial   = 2000
	reverseFutilityMargin = 300
	futilityMargin        = 300
	deltaPruningMargin    = 100
)

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// Searcher performs the alpha-beta search for a single BestMove call. It
// owns the board copy being searched, the shared transposition and pawn
// tables, and per-call move-ordering state (killers/history are cleared at
// the start of every call; the TT and pawn table persist across calls).
type Searcher struct {
	pos       *board.Position
	tt        *TranspositionTable
	pawnTable *PawnTable
	orderer   *MoveOrderer
	tm        *TimeManager

	nodes     uint64
	cancelled bool

	pv PVTable

	undoStack [MaxPly]board.UndoInfo
}

// NewSearcher creates a new searcher sharing the given transposition and
// pawn tables.
func NewSearcher(tt *TranspositionTable, pawnTable *PawnTable) *Searcher {
	return &Searcher{
		tt:        tt,
		pawnTable: pawnTable,
		orderer:   NewMoveOrderer(),
	}
}

// Nodes returns the number of nodes searched during the current/last call.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// TimedOut reports whether the cancellation flag tripped during the search.
func (s *Searcher) TimedOut() bool {
	return s.cancelled
}

// reset prepares the searcher for a new BestMove call. Killers and history
// are cleared per call; the TT and pawn table are left untouched so they
// keep paying off across calls on related positions.
func (s *Searcher) reset(pos *board.Position, tm *TimeManager) {
	s.pos = pos.Copy()
	s.tm = tm
	s.nodes = 0
	s.cancelled = false
	s.orderer.Clear()
}

// IterateResult is one completed (or partially completed) depth of
// iterative deepening.
type IterateResult struct {
	Move      board.Move
	Score     int
	Depth     int
	Completed bool
}

// Iterate runs iterative deepening from depth 2 up to an effective depth
// clamped by position complexity, reporting each completed depth's result
// via onDepth (may be nil). It returns the best move found and whether the
// search was cut off by timeout before the first depth completed.
func (s *Searcher) Iterate(pos *board.Position, targetDepth int, tm *TimeManager, onDepth func(IterateResult)) (board.Move, int, bool) {
	s.reset(pos, tm)

	legalCount := s.pos.GenerateLegalMoves().Len()
	effectiveDepth := targetDepth
	switch {
	case legalCount > 40:
		effectiveDepth = min(targetDepth-1, 4)
	case legalCount > 25:
		effectiveDepth = min(targetDepth, 5)
	}
	if effectiveDepth < 1 {
		effectiveDepth = 1
	}

	var bestMove board.Move
	var bestScore int
	haveResult := false
	var pvHint board.Move

	for d := 2; d <= effectiveDepth; d++ {
		var score int
		var move board.Move

		if d >= 4 && haveResult {
			score, move = s.aspirationSearch(d, bestScore, pvHint)
		} else {
			move, score = s.searchRoot(d, -Infinity, Infinity, pvHint)
		}

		if s.cancelled {
			break
		}

		bestMove, bestScore = move, score
		haveResult = true
		pvHint = bestMove

		if onDepth != nil {
			onDepth(IterateResult{Move: move, Score: score, Depth: d, Completed: true})
		}

		if score > MateScore-MaxPly || score < -MateScore+MaxPly {
			break
		}
	}

	if !haveResult {
		bestMove = s.fallbackMove()
	}

	return bestMove, bestScore, !haveResult
}

// aspirationSearch narrows the window around a previous iteration's score,
// widening on failure, per the documented widening schedule.
func (s *Searcher) aspirationSearch(depth, prevScore int, pvHint board.Move) (int, board.Move) {
	window := 50
	alpha := prevScore - window
	beta := prevScore + window

	for attempt := 0; attempt < 5; attempt++ {
		move, score := s.searchRoot(depth, alpha, beta, pvHint)
		if s.cancelled {
			return score, move
		}
		if score > alpha && score < beta {
			return score, move
		}
		if score <= alpha {
			alpha -= window
		}
		if score >= beta {
			beta += window
		}
		window *= 2
	}

	return s.searchRoot(depth, -Infinity, Infinity, pvHint)
}

// searchRoot runs one negamax call at the root and extracts the best move
// from the PV table.
func (s *Searcher) searchRoot(depth, alpha, beta int, pvHint board.Move) (board.Move, int) {
	s.pv.length[0] = 0
	score := s.negamax(depth, 0, alpha, beta, false, pvHint)

	var move board.Move
	if s.pv.length[0] > 0 {
		move = s.pv.moves[0][0]
	}
	return move, score
}

// fallbackMove implements the cancellation fallback: if the first iteration
// never completed, order the root moves and evaluate the top few one ply,
// picking the best; if that still finds nothing, any legal move will do.
func (s *Searcher) fallbackMove() board.Move {
	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		return board.NoMove
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, 0, board.NoMove)
	SortMoves(moves, scores)

	limit := 5
	if moves.Len() < limit {
		limit = moves.Len()
	}

	best := moves.Get(0)
	bestScore := -Infinity
	for i := 0; i < limit; i++ {
		move := moves.Get(i)
		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			s.pos.UnmakeMove(move, undo)
			continue
		}
		score := -EvaluateWithPawnTable(s.pos, s.pawnTable)
		s.pos.UnmakeMove(move, undo)
		if score > bestScore {
			bestScore = score
			best = move
		}
	}
	return best
}

// recordTTMove seeds the PV at ply with the transposition table's stored
// move. negamax's TT-window-collapse paths return a bare score without
// searching any further at this ply, so without this the PV array would
// keep whatever zero-length entry was set at the top of the call — fatal
// at ply 0, where searchRoot reads s.pv.moves[0][0] to pick the move to
// play. A no-move entry is never recorded, since Store only ever writes a
// bestMove seen during this node's own move loop.
func (s *Searcher) recordTTMove(ply int, move board.Move) {
	if move == board.NoMove {
		return
	}
	s.pv.moves[ply][ply] = move
	s.pv.length[ply] = ply + 1
}

// negamax implements the search core: check extension, TT probe/store,
// reverse futility, null-move pruning, move-loop futility and LMR, all in
// the documented order of operations.
func (s *Searcher) negamax(depth, ply int, alpha, beta int, alreadyExtended bool, pvHint board.Move) int {
	// 1. Periodic cancellation check.
	s.nodes++
	if s.nodes%1000 == 0 && s.tm != nil && s.tm.ShouldStop() {
		s.cancelled = true
		return 0
	}
	if s.cancelled {
		return 0
	}

	s.pv.length[ply] = ply

	inCheck := s.pos.InCheck()

	// 2. Check extension: at most once per branch.
	if inCheck && !alreadyExtended && depth <= 2 {
		depth++
		alreadyExtended = true
	}

	// 3. TT probe.
	var ttMove board.Move
	alphaOrig, betaOrig := alpha, beta
	ttEntry, found := s.tt.Probe(s.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		if int(ttEntry.Depth) >= depth {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				s.recordTTMove(ply, ttMove)
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				s.recordTTMove(ply, ttMove)
				return score
			}
		}
	}

	hint := ttMove
	if ply == 0 && pvHint != board.NoMove {
		hint = pvHint
	}

	// 4. Terminal positions.
	if ply > 0 && s.isDraw() {
		return 0
	}

	// 5. Quiescence handoff.
	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	staticEval := EvaluateWithPawnTable(s.pos, s.pawnTable)

	// 6. Reverse futility pruning.
	if depth <= 3 && !inCheck && staticEval-reverseFutilityMargin*depth >= beta {
		return staticEval
	}

	// 7. Null-move pruning.
	if depth >= 3 && !inCheck && totalMaterial(s.pos) >= nullMoveMinMaterial {
		undo := s.pos.MakeNullMove()
		score := -s.negamax(depth-1-nullMoveReduction, ply+1, -beta, -beta+1, alreadyExtended, board.NoMove)
		s.pos.UnmakeNullMove(undo)
		if s.cancelled {
			return 0
		}
		if score >= beta {
			return beta
		}
	}

	// 8. Move ordering.
	scores := s.orderer.ScoreMoves(s.pos, moves, ply, hint)

	bestScore := -Infinity
	bestMove := board.NoMove

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)
		quiet := !move.IsCapture(s.pos) && !move.IsPromotion()

		// 9a. Futility pruning at depth 1.
		if depth == 1 && !inCheck && quiet && staticEval+futilityMargin*depth < alpha {
			undo := s.pos.MakeMove(move)
			givesCheck := undo.Valid && s.pos.InCheck()
			s.pos.UnmakeMove(move, undo)
			if undo.Valid && !givesCheck {
				continue
			}
		}

		s.undoStack[ply] = s.pos.MakeMove(move)
		if !s.undoStack[ply].Valid {
			continue
		}

		isKiller := move == s.orderer.killers[ply][0] || move == s.orderer.killers[ply][1]

		var score int
		if i > 3 && depth >= 3 && quiet && !isKiller {
			// 9b. Late-move reduction with re-search.
			reduction := min(depth-1, 1+min(i/6, depth/2))
			score = -s.negamax(depth-1-reduction, ply+1, -beta, -alpha, alreadyExtended, board.NoMove)
			if !s.cancelled && score > alpha && score < beta {
				score = -s.negamax(depth-1, ply+1, -beta, -alpha, alreadyExtended, board.NoMove)
			}
		} else {
			score = -s.negamax(depth-1, ply+1, -beta, -alpha, alreadyExtended, board.NoMove)
		}

		s.pos.UnmakeMove(move, s.undoStack[ply])

		if s.cancelled {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score

				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = s.pv.length[ply+1]
			}
		}

		if alpha >= beta {
			if quiet {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(move, depth, true)
			}
			break
		}
	}

	if !s.cancelled {
		flag := TTExact
		if bestScore <= alphaOrig {
			flag = TTUpperBound
		} else if bestScore >= betaOrig {
			flag = TTLowerBound
		}
		s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove)
	}

	return bestScore
}

// quiescence resolves capture sequences to avoid the horizon effect.
func (s *Searcher) quiescence(ply int, alpha, beta int) int {
	s.nodes++
	if s.nodes%1000 == 0 && s.tm != nil && s.tm.ShouldStop() {
		s.cancelled = true
		return 0
	}
	if s.cancelled {
		return 0
	}

	const maxQuiescencePly = 32
	if ply >= MaxPly || ply > maxQuiescencePly {
		return EvaluateWithPawnTable(s.pos, s.pawnTable)
	}

	standPat := EvaluateWithPawnTable(s.pos, s.pawnTable)
	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}

	moves := s.pos.GenerateCaptures()
	scores := s.orderer.ScoreMoves(s.pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		var victimValue int
		if move.IsEnPassant() {
			victimValue = PawnValue
		} else if captured := s.pos.PieceAt(move.To()); captured != board.NoPiece {
			victimValue = captured.Value()
		}
		if move.IsPromotion() {
			victimValue += pieceValues[move.Promotion()] - PawnValue
		}

		if standPat+victimValue+deltaPruningMargin < alpha {
			continue
		}

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			s.pos.UnmakeMove(move, undo)
			continue
		}

		score := -s.quiescence(ply+1, -beta, -alpha)
		s.pos.UnmakeMove(move, undo)

		if s.cancelled {
			return 0
		}

		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// isDraw reports 50-move and insufficient-material draws. The retrieved
// board adapter carries no position-history stack, so threefold repetition
// is not detectable here; this matches the adapter's existing surface.
func (s *Searcher) isDraw() bool {
	if s.pos.HalfMoveClock >= 100 {
		return true
	}
	return s.pos.IsInsufficientMaterial()
}

// totalMaterial sums non-pawn, non-king material for both sides, used as
// the null-move pruning zugzwang guard.
func totalMaterial(pos *board.Position) int {
	total := 0
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Knight; pt < board.King; pt++ {
			total += pos.Pieces[c][pt].PopCount() * pieceValues[pt]
		}
	}
	return total
}

// GetPV returns the principal variation from the last search.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}
