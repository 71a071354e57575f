package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextIsSingleSegment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"hello world"}, Chunk("hello world", 80))
	assert.Nil(t, Chunk("", 80))
}

func TestChunkCutsOnWordBoundaries(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"boundary on space", "hello world foo", 11, []string{"hello world", "foo"}},
		{"walk back to space", "hello world foo", 8, []string{"hello", "world", "foo"}},
		{"exact fit", "abc def", 7, []string{"abc def"}},
		{"oversized token", strings.Repeat("x", 100), 80, []string{strings.Repeat("x", 80), strings.Repeat("x", 20)}},
		{"oversized token between words", "ab " + strings.Repeat("y", 12) + " cd", 5, []string{"ab", "yyyyy", "yyyyy", "yy cd"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Chunk(tc.text, tc.width))
		})
	}
}

func TestChunkNeverExceedsWidthForShortTokens(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a ", 39) + "bb"
	chunks := Chunk(text, 80)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 80, "chunk %q", c)
	}

	long := strings.Repeat("palavra ", 60)
	for _, c := range Chunk(long, 80) {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 80, "chunk %q", c)
	}
}

func TestChunkRejoinReconstructsText(t *testing.T) {
	t.Parallel()

	text := "São Paulo é a maior cidade do Brasil e oferece uma enorme variedade de " +
		"restaurantes, museus, parques e hotéis para todos os gostos e orçamentos."
	for _, width := range []int{16, 25, 40, 80} {
		chunks := Chunk(text, width)
		assert.Equal(t, text, strings.Join(chunks, " "), "width %d", width)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c))
		}
	}
}

func TestChunkDefaultsWidth(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("z", DefaultChunkWidth+1)
	assert.Equal(t, []string{strings.Repeat("z", DefaultChunkWidth), "z"}, Chunk(text, 0))
}

func TestChunkAllFlattensParagraphs(t *testing.T) {
	t.Parallel()

	got := ChunkAll([]string{"one two three", "", "four"}, 7)
	assert.Equal(t, []string{"one two", "three", "four"}, got)
}
