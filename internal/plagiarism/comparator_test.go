package plagiarism

import (
	"strings"
	"testing"

	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareIdenticalText(t *testing.T) {
	texts := []string{
		"hello world",
		strings.Repeat("Originality is measured against every earlier submission. ", 8),
	}
	for _, text := range texts {
		score, blocks := Compare(text, text)
		assert.Equal(t, 1.0, score)
		require.Len(t, blocks, 1)

		n := len([]rune(text))
		assert.Equal(t, models.MatchingBlock{
			SourceStart: 0,
			SourceEnd:   n,
			OtherStart:  0,
			OtherEnd:    n,
			Length:      n,
			Snippet:     text,
		}, blocks[0])
	}
}

func TestCompareEmptyText(t *testing.T) {
	score, blocks := Compare("", "anything")
	assert.Equal(t, 0.0, score)
	assert.Empty(t, blocks)

	score, blocks = Compare("anything", "")
	assert.Equal(t, 0.0, score)
	assert.Empty(t, blocks)
}

func TestCompareRatioAndBlocks(t *testing.T) {
	score, blocks := Compare("hello world", "hello there world")
	assert.InDelta(t, 22.0/28.0, score, 1e-12)
	require.Len(t, blocks, 2)
	assert.Equal(t, models.MatchingBlock{SourceStart: 0, SourceEnd: 6, OtherStart: 0, OtherEnd: 6, Length: 6, Snippet: "hello "}, blocks[0])
	assert.Equal(t, models.MatchingBlock{SourceStart: 6, SourceEnd: 11, OtherStart: 12, OtherEnd: 17, Length: 5, Snippet: "world"}, blocks[1])
}

func TestCompareBlockOffsetsIndexFirstArgument(t *testing.T) {
	_, blocks := Compare("hello there world", "hello world")
	require.Len(t, blocks, 2)
	assert.Equal(t, 12, blocks[1].SourceStart)
	assert.Equal(t, 6, blocks[1].OtherStart)
	assert.Equal(t, "world", blocks[1].Snippet)
}

func TestCompareScoreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"the quick brown fox", "the quick brown cat"},
		{"hello world", "hello there world"},
		{"The cat sat on the mat.", "A cat sat on a mat."},
	}
	for _, p := range pairs {
		ab, _ := Compare(p[0], p[1])
		ba, _ := Compare(p[1], p[0])
		assert.Equal(t, ab, ba, "%q vs %q", p[0], p[1])
	}
}

func TestCompareDropsShortBlocks(t *testing.T) {
	score, blocks := Compare("The cat sat on the mat.", "A cat sat on a mat.")
	assert.InDelta(t, 34.0/42.0, score, 1e-12)
	require.Len(t, blocks, 2)
	assert.Equal(t, " cat sat on ", blocks[0].Snippet)
	assert.Equal(t, " mat.", blocks[1].Snippet)

	_, blocks = CompareWithMinBlock("The cat sat on the mat.", "A cat sat on a mat.", 6)
	require.Len(t, blocks, 1)
	assert.Equal(t, 12, blocks[0].Length)
}

func TestCompareNoOverlap(t *testing.T) {
	score, blocks := Compare("abcdefgh", "zzzzzzzz")
	assert.Equal(t, 0.0, score)
	assert.Empty(t, blocks)
}

func TestCompareTruncatesLongInput(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor ", 700) // 12600 characters
	require.Greater(t, len([]rune(long)), MaxComparisonLength)
	other := "ipsum dolor sit amet"

	score, blocks := Compare(long, other)
	cutScore, cutBlocks := Compare(string([]rune(long)[:MaxComparisonLength]), other)

	assert.Equal(t, cutScore, score)
	assert.Equal(t, cutBlocks, blocks)
	for _, b := range blocks {
		assert.LessOrEqual(t, b.SourceEnd, MaxComparisonLength)
	}
}

func TestCompareCountsCharactersNotBytes(t *testing.T) {
	text := "naïve café résumé"
	score, blocks := Compare(text, text)
	assert.Equal(t, 1.0, score)
	require.Len(t, blocks, 1)
	assert.Equal(t, len([]rune(text)), blocks[0].Length)
	assert.Equal(t, text, blocks[0].Snippet)
}

func TestCompareBlockInvariants(t *testing.T) {
	a := "Plagiarism detection compares submissions against a corpus of earlier work."
	b := "Earlier work forms a corpus; detection compares each new submission against it."

	_, blocks := Compare(a, b)
	for _, blk := range blocks {
		assert.GreaterOrEqual(t, blk.Length, DefaultMinBlockSize)
		assert.Equal(t, blk.Length, blk.SourceEnd-blk.SourceStart)
		assert.Equal(t, blk.Length, blk.OtherEnd-blk.OtherStart)
		assert.Equal(t, string([]rune(a)[blk.SourceStart:blk.SourceEnd]), blk.Snippet)
		assert.Equal(t, string([]rune(b)[blk.OtherStart:blk.OtherEnd]), blk.Snippet)
	}
}
