package features

import (
	"strconv"

	"github.com/happyhackingspace/qsample/corpus"
)

const (
	cueWindow      = 5
	cueMaxDistance = 50
)

var thresholds = []int{1, 2, 3, 4, 5, 6, 7, 8, 11, 16, 21, 26, 31, 41, 51, 61, 71, 81, 91, 101}

var intervals = []struct {
	lo, hi int
	name   string
}{
	{1, 4, "_in_[0,5)"},
	{5, 9, "_in_[5,10)"},
	{10, 19, "_in_[10,20)"},
	{20, 39, "_in_[20,40)"},
	{40, 59, "_in_[40,60)"},
	{60, 79, "_in_[60,80)"},
	{80, 100, "_in_[80,100]"},
}

// DistanceBins returns the interval bin of d plus cumulative >= and <= bins.
func DistanceBins(d int, prefix string) []string {
	var out []string
	for _, iv := range intervals {
		if d >= iv.lo && d <= iv.hi {
			out = append(out, prefix+iv.name)
		}
	}
	for _, b := range thresholds {
		if d <= b {
			out = append(out, prefix+"<="+strconv.Itoa(b))
		}
	}
	for _, b := range thresholds {
		if d >= b {
			out = append(out, prefix+">="+strconv.Itoa(b))
		}
	}
	return out
}

// AddCueFeatures rebuilds the cue-derived boundary features of doc from the
// current predicted cues.
func AddCueFeatures(doc *corpus.Document) {
	for _, t := range doc.Tokens {
		t.CueFeatures = t.CueFeatures[:0]
	}
	for _, cue := range doc.Tokens {
		if !cue.PredictedCue {
			continue
		}
		p := cue.Position
		for k := 1; k <= cueWindow; k++ {
			d := strconv.Itoa(k)
			if left := doc.Token(p - k); left != nil {
				left.CueFeatures = append(left.CueFeatures, "CUE-COMES-RIGHT-WIN", "CUE-COMES-RIGHT-WIN-"+d)
			}
			if right := doc.Token(p + k); right != nil {
				right.CueFeatures = append(right.CueFeatures, "CUE-COMES-LEFT-WIN", "CUE-COMES-LEFT-WIN-"+d)
			}
		}
		for k := 1; k < cueMaxDistance; k++ {
			if prev := doc.Token(p - k); prev != nil {
				prev.CueFeatures = append(prev.CueFeatures, DistanceBins(k, "DISTANCE-TO-NEXT-CUE-")...)
			}
			if next := doc.Token(p + k); next != nil {
				next.CueFeatures = append(next.CueFeatures, DistanceBins(k, "DISTANCE-TO-PREV-CUE-")...)
			}
		}
	}
	for _, t := range doc.Tokens {
		t.CueFeatures = dedupe(t.CueFeatures)
	}
}

func dedupe(fs []string) []string {
	if len(fs) < 2 {
		return fs
	}
	seen := make(map[string]bool, len(fs))
	out := fs[:0]
	for _, f := range fs {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
