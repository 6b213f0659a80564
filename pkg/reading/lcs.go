package reading

// BuildTable returns the (m+1)×(n+1) longest-common-subsequence table for
// original and transcribed, comparing words with [Equal].
func BuildTable(original, transcribed []string) [][]int {
	m, n := len(original), len(transcribed)

	// Clean each word once instead of once per cell.
	co := cleanAll(original)
	ct := cleanAll(transcribed)

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if co[i-1] == ct[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}
	return dp
}

// Backtrack reconstructs the alignment from a table produced by [BuildTable].
// Pairs are returned in increasing index order. When the up and left
// neighbours score equally the walk moves left, decrementing the transcript
// index.
func Backtrack(dp [][]int, original, transcribed []string) []Pair {
	i, j := len(original), len(transcribed)
	if len(dp) != i+1 || (i > 0 && len(dp[0]) != j+1) {
		return nil
	}

	pairs := make([]Pair, 0, dp[i][j])
	for i > 0 && j > 0 {
		switch {
		case Equal(original[i-1], transcribed[j-1]):
			pairs = append(pairs, Pair{OriginalIndex: i - 1, TranscribedIndex: j - 1})
			i--
			j--
		case dp[i-1][j] > dp[i][j-1]:
			i--
		default:
			j--
		}
	}

	// Built back to front.
	for l, r := 0, len(pairs)-1; l < r; l, r = l+1, r-1 {
		pairs[l], pairs[r] = pairs[r], pairs[l]
	}
	return pairs
}

// Align is BuildTable followed by Backtrack.
func Align(original, transcribed []string) []Pair {
	return Backtrack(BuildTable(original, transcribed), original, transcribed)
}

func cleanAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Clean(w)
	}
	return out
}
