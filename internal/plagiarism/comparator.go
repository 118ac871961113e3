package plagiarism

import (
	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	// MaxComparisonLength caps each text, in characters, before matching.
	MaxComparisonLength = 10000
	// DefaultMinBlockSize is the shortest run reported as a matching block.
	DefaultMinBlockSize = 5
)

// Compare measures how similar textB is to textA using the default minimum block size.
func Compare(textA, textB string) (float64, []models.MatchingBlock) {
	return CompareWithMinBlock(textA, textB, DefaultMinBlockSize)
}

// CompareWithMinBlock returns the gestalt ratio 2*M/T of the two texts and the matched runs of at
// least minBlockSize characters. Both texts are cut to MaxComparisonLength characters first and all
// offsets refer to the cut texts; block offsets A always index textA.
func CompareWithMinBlock(textA, textB string, minBlockSize int) (float64, []models.MatchingBlock) {
	a := truncateRunes(textA, MaxComparisonLength)
	b := truncateRunes(textB, MaxComparisonLength)
	if len(a) == 0 || len(b) == 0 {
		return 0.0, []models.MatchingBlock{}
	}

	// Auto-junk off: popular characters such as spaces must still count as matches,
	// otherwise identical long texts would not score 1.0.
	matcher := difflib.NewMatcherWithJunk(runeElements(a), runeElements(b), false, nil)
	score := matcher.Ratio()

	blocks := make([]models.MatchingBlock, 0)
	for _, m := range matcher.GetMatchingBlocks() {
		if m.Size == 0 || m.Size < minBlockSize {
			continue
		}
		blocks = append(blocks, models.MatchingBlock{
			SourceStart: m.A,
			SourceEnd:   m.A + m.Size,
			OtherStart:  m.B,
			OtherEnd:    m.B + m.Size,
			Length:      m.Size,
			Snippet:     string(a[m.A : m.A+m.Size]),
		})
	}

	return score, blocks
}

func truncateRunes(text string, limit int) []rune {
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return runes
}

// runeElements turns text into the one-element-per-character sequence the matcher works on.
func runeElements(runes []rune) []string {
	elems := make([]string, len(runes))
	for i, r := range runes {
		elems[i] = string(r)
	}
	return elems
}
