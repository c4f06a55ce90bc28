package diag

import "sort"

// jaroSimilarity scores how similar two strings are in [0, 1], per
// https://en.wikipedia.org/wiki/Jaro%E2%80%93Winkler_distance#Jaro_similarity.
// Ported from original_source/plinky_utils/src/jaro_similarity.rs's
// algorithm, re-expressed over Go rune slices rather than translated line
// for line.
func jaroSimilarity(lhs, rhs string) float64 {
	a := []rune(lhs)
	b := []rune(rhs)
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matchDistance := max(len(a), len(b))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0

	for i, ac := range a {
		lo := i - matchDistance
		if lo < 0 {
			lo = 0
		}
		hi := i + matchDistance + 1
		if hi > len(b) {
			hi = len(b)
		}
		for j := lo; j < hi; j++ {
			if bMatched[j] || b[j] != ac {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	j := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	return (1.0 / 3.0) * (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2.0)/m)
}

// Suggestion is one candidate name offered as a "did you mean" hint.
type Suggestion struct {
	Name  string
	Score float64
}

// similarityThreshold is the minimum Jaro score a candidate must clear to
// be worth suggesting at all.
const similarityThreshold = 0.7

// Suggest ranks candidates by similarity to name and returns up to limit
// of the closest matches above similarityThreshold, best first (spec §7
// "suggested similar symbol names").
func Suggest(name string, candidates []string, limit int) []Suggestion {
	var out []Suggestion
	for _, c := range candidates {
		if c == name {
			continue
		}
		score := jaroSimilarity(name, c)
		if score >= similarityThreshold {
			out = append(out, Suggestion{Name: c, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SuggestHint formats Suggest's results as Hints ready to attach to an
// undefined-symbol error.
func SuggestHint(name string, candidates []string) []Hint {
	suggestions := Suggest(name, candidates, 3)
	if len(suggestions) == 0 {
		return nil
	}
	hints := make([]Hint, 0, len(suggestions))
	for _, s := range suggestions {
		hints = append(hints, Hint{Text: "did you mean \"" + s.Name + "\"?"})
	}
	return hints
}
