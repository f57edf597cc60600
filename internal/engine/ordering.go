package engine

import (
	"github.com/corvid-labs/chessplay/internal/board"
)

// Move ordering priorities, per the additive scoring scale: PV-hint/TT move
// ranks above everything, then captures (scored by full static-exchange
// evaluation on top of the base), then promotions, then killers, then quiet
// moves via history.
const (
	PVHintScore     = 20000
	CaptureBase     = 10000
	PromotionBase   = 9000
	KillerScore1    = 8000
	KillerScore2    = 7000
	CentralBonus    = 50
	DevelopmentBonus = 100
	CastlingBonus   = 300
)

// MoveOrderer handles move ordering for the search.
type MoveOrderer struct {
	// Killer moves (quiet moves that caused beta cutoffs)
	killers [MaxPly][2]board.Move

	// History heuristic (indexed by [from][to])
	history [64][64]int
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear resets the move orderer for a new search.
func (mo *MoveOrderer) Clear() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}

	// History starts from zero for every search; it still accumulates
	// across the iterative-deepening iterations within that search.
	for i := range mo.history {
		for j := range mo.history[i] {
			mo.history[i][j] = 0
		}
	}
}

// ScoreMoves assigns scores to moves for ordering. pvHint is the move to
// rank first: the PV-hint at the root/iteration seam, or the TT best move
// at interior nodes.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, ply int, pvHint board.Move) []int {
	scores := make([]int, moves.Len())

	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		scores[i] = mo.scoreMove(pos, move, ply, pvHint)
	}

	return scores
}

// isCentral reports whether a square falls in the central 4x4 block
// (files 2..5, ranks 2..5, 0-indexed).
func isCentral(sq board.Square) bool {
	f, r := sq.File(), sq.Rank()
	return f >= 2 && f <= 5 && r >= 2 && r <= 5
}

// scoreMove returns the ordering score for a single move.
func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, pvHint board.Move) int {
	if m == pvHint {
		return PVHintScore
	}

	from := m.From()
	to := m.To()
	score := 0

	switch {
	case m.IsCapture(pos):
		score = CaptureBase + SEE(pos, m)
	case m.IsPromotion():
		score = PromotionBase + board.PieceValue[m.Promotion()]
	case m == mo.killers[ply][0]:
		score = KillerScore1
	case m == mo.killers[ply][1]:
		score = KillerScore2
	default:
		score = mo.history[from][to] / 10
	}

	if isCentral(to) {
		score += CentralBonus
	}

	if pos.FullMoveNumber < 10 {
		if piece := pos.PieceAt(from); piece.Type() == board.Knight || piece.Type() == board.Bishop {
			homeRank := 0
			if piece.Color() == board.Black {
				homeRank = 7
			}
			if from.Rank() == homeRank && to.Rank() != homeRank {
				score += DevelopmentBonus
			}
		}
	}

	if m.IsCastling() {
		score += CastlingBonus
	}

	return score
}

// SortMoves sorts moves by their scores (descending).
func SortMoves(moves *board.MoveList, scores []int) {
	// Simple selection sort (sufficient for ~40 moves)
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			moves.Swap(i, best)
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}

// PickMove selects the best remaining move and moves it to position index.
// This allows lazy move sorting (only sort as much as needed).
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers adds a killer move at the given ply. Captures are never
// stored (callers only pass quiet moves here).
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly {
		return
	}

	if mo.killers[ply][0] == m {
		return
	}

	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// UpdateHistory updates the history score for a move that caused (isGood)
// or merely participated in (!isGood) a beta cutoff search.
func (mo *MoveOrderer) UpdateHistory(m board.Move, depth int, isGood bool) {
	from := m.From()
	to := m.To()

	bonus := depth * depth
	if isGood {
		mo.history[from][to] += bonus
		if mo.history[from][to] > 400000 {
			for i := range mo.history {
				for j := range mo.history[i] {
					mo.history[i][j] /= 2
				}
			}
		}
	} else {
		mo.history[from][to] -= bonus
		if mo.history[from][to] < -400000 {
			mo.history[from][to] = -400000
		}
	}
}

// GetHistoryScore returns the raw history score for a move.
func (mo *MoveOrderer) GetHistoryScore(m board.Move) int {
	return mo.history[m.From()][m.To()]
}
