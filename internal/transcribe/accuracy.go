package transcribe

import (
	"fmt"
	"strings"
	"unicode"
)

// Accuracy compares a transcript against the text the speaker intended.
type Accuracy struct {
	Reference     int // words in the reference
	Substitutions int
	Insertions    int
	Deletions     int
}

// Errors is the total edit count.
func (a Accuracy) Errors() int { return a.Substitutions + a.Insertions + a.Deletions }

// WER is the word error rate: edits per reference word. It can exceed 1
// when the transcript has many extra words.
func (a Accuracy) WER() float64 {
	if a.Reference == 0 {
		return 0
	}
	return float64(a.Errors()) / float64(a.Reference)
}

func (a Accuracy) String() string {
	return fmt.Sprintf("WER %.1f%% (%d sub, %d ins, %d del over %d words)",
		a.WER()*100, a.Substitutions, a.Insertions, a.Deletions, a.Reference)
}

// Score aligns transcript to reference word by word, ignoring case and
// punctuation.
func Score(reference, transcript string) Accuracy {
	ref, hyp := words(reference), words(transcript)
	n, m := len(ref), len(hyp)
	if n == 0 {
		return Accuracy{Insertions: m}
	}

	// dist[i*(m+1)+j] is the edit distance between ref[:i] and hyp[:j].
	w := m + 1
	dist := make([]int, (n+1)*w)
	for i := 0; i <= n; i++ {
		dist[i*w] = i
	}
	for j := 0; j <= m; j++ {
		dist[j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			dist[i*w+j] = min(dist[(i-1)*w+j-1]+cost, dist[(i-1)*w+j]+1, dist[i*w+j-1]+1)
		}
	}

	acc := Accuracy{Reference: n}
	for i, j := n, m; i > 0 || j > 0; {
		here := dist[i*w+j]
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1] && here == dist[(i-1)*w+j-1]:
			i, j = i-1, j-1
		case i > 0 && j > 0 && here == dist[(i-1)*w+j-1]+1:
			acc.Substitutions++
			i, j = i-1, j-1
		case i > 0 && here == dist[(i-1)*w+j]+1:
			acc.Deletions++
			i--
		default:
			acc.Insertions++
			j--
		}
	}
	return acc
}

func words(s string) []string {
	return strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s))
}
