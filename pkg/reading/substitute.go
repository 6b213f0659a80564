package reading

// Substitutions pairs the passage words the alignment left unmatched with
// unmatched transcript words in the same gap between two aligned anchors.
//
// Within a gap of k passage words and l transcript words, exactly min(k, l)
// pairs are made, order preserved on both sides, choosing the pairing with
// the highest total similarity. Equal totals resolve toward pairing the last
// words of the gap. Returned pairs are in increasing index order.
func Substitutions(original, transcribed []string, alignment []Pair) []Pair {
	var out []Pair
	prevO, prevT := -1, -1
	// Sentinel anchor closes the trailing gap.
	anchors := append(alignment[:len(alignment):len(alignment)], Pair{OriginalIndex: len(original), TranscribedIndex: len(transcribed)})
	for _, a := range anchors {
		gapO := indexRange(prevO+1, a.OriginalIndex)
		gapT := indexRange(prevT+1, a.TranscribedIndex)
		if len(gapO) > 0 && len(gapT) > 0 {
			out = append(out, pairGap(original, transcribed, gapO, gapT)...)
		}
		prevO, prevT = a.OriginalIndex, a.TranscribedIndex
	}
	return out
}

type gapCell struct {
	pairs int
	sim   float64
	// 0 pair, 1 skip original, 2 skip transcript
	move int8
}

func (c gapCell) better(o gapCell) bool {
	if c.pairs != o.pairs {
		return c.pairs > o.pairs
	}
	return c.sim > o.sim
}

func pairGap(original, transcribed []string, gapO, gapT []int) []Pair {
	k, l := len(gapO), len(gapT)
	sims := make([][]float64, k)
	for a := range k {
		sims[a] = make([]float64, l)
		co := Clean(original[gapO[a]])
		for b := range l {
			sims[a][b] = Similarity(Clean(transcribed[gapT[b]]), co)
		}
	}

	f := make([][]gapCell, k+1)
	for a := range f {
		f[a] = make([]gapCell, l+1)
	}
	for a := 1; a <= k; a++ {
		f[a][0] = gapCell{move: 1}
	}
	for b := 1; b <= l; b++ {
		f[0][b] = gapCell{move: 2}
	}
	for a := 1; a <= k; a++ {
		for b := 1; b <= l; b++ {
			best := gapCell{pairs: f[a-1][b-1].pairs + 1, sim: f[a-1][b-1].sim + sims[a-1][b-1], move: 0}
			if c := (gapCell{pairs: f[a][b-1].pairs, sim: f[a][b-1].sim, move: 2}); c.better(best) {
				best = c
			}
			if c := (gapCell{pairs: f[a-1][b].pairs, sim: f[a-1][b].sim, move: 1}); c.better(best) {
				best = c
			}
			f[a][b] = best
		}
	}

	var pairs []Pair
	a, b := k, l
	for a > 0 && b > 0 {
		switch f[a][b].move {
		case 0:
			pairs = append(pairs, Pair{OriginalIndex: gapO[a-1], TranscribedIndex: gapT[b-1]})
			a--
			b--
		case 1:
			a--
		default:
			b--
		}
	}
	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	return pairs
}

func indexRange(from, to int) []int {
	if to <= from {
		return nil
	}
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
