package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble 按切分规则反向还原原文：去掉每个非首块的重叠前缀后拼接。
func reassemble(chunks []string, overlap int) string {
	var sb strings.Builder
	consumed := 0
	for i, c := range chunks {
		runes := []rune(c)
		if i == 0 {
			sb.WriteString(c)
			consumed += len(runes)
			continue
		}
		prefix := overlap
		if consumed < prefix {
			prefix = consumed
		}
		sb.WriteString(string(runes[prefix:]))
		consumed += len(runes) - prefix
	}
	return sb.String()
}

func TestNewValidation(t *testing.T) {
	_, err := New(0, 0, nil)
	assert.Error(t, err)

	_, err = New(100, 100, nil)
	assert.Error(t, err)

	_, err = New(100, -1, nil)
	assert.Error(t, err)

	s, err := New(100, 20, nil)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSplitEmptyInput(t *testing.T) {
	s, err := New(100, 20, nil)
	require.NoError(t, err)
	assert.Empty(t, s.Split(""))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s, err := New(1500, 300, nil)
	require.NoError(t, err)

	text := "一段不需要切分的短文本。\nA short paragraph."
	chunks := s.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitCoverageAndBounds(t *testing.T) {
	s, err := New(200, 40, nil)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString(strings.Repeat("lorem ipsum dolor sit amet ", 3))
		sb.WriteString("\n\n")
	}
	text := sb.String()

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.NotEmpty(t, c, "chunk %d should not be empty", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200, "chunk %d exceeds size", i)
	}
	assert.Equal(t, text, reassemble(chunks, 40))
}

func TestSplitDeterministic(t *testing.T) {
	s, err := New(120, 30, nil)
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta\nepsilon zeta\n\n", 20)
	first := s.Split(text)
	second := s.Split(text)
	assert.Equal(t, first, second)
}

func TestSplitThreeChunkDocument(t *testing.T) {
	s, err := New(1500, 300, nil)
	require.NoError(t, err)

	// 12 个恰好 300 字符的段落（含段落分隔符），总计 3600 字符：
	// 窗口预算 1200，贪心合并得到 3 个窗口
	paragraph := strings.Repeat("word ", 59) + "end" + "\n\n"
	require.Equal(t, 300, utf8.RuneCountInString(paragraph))
	text := strings.Repeat(paragraph, 12)

	chunks := s.Split(text)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1500, "chunk %d exceeds size", i)
	}

	// 非首块以相邻原文的尾部 300 字符开头
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		expected := string(prev[len(prev)-300:])
		assert.True(t, strings.HasPrefix(chunks[i], expected), "chunk %d missing overlap prefix", i)
	}

	assert.Equal(t, text, reassemble(chunks, 300))
}

func TestSplitHardSliceFallback(t *testing.T) {
	s, err := New(20, 5, nil)
	require.NoError(t, err)

	// 没有任何分隔符的长字符串只能逐字符硬切
	text := strings.Repeat("x", 50)
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 20, "chunk %d exceeds size", i)
	}
	assert.Equal(t, text, reassemble(chunks, 5))
}

func TestSplitMultiByteRunes(t *testing.T) {
	s, err := New(50, 10, nil)
	require.NoError(t, err)

	text := strings.Repeat("中文内容不会被从字符中间切断。", 20)
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %d contains invalid UTF-8", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 50, "chunk %d exceeds size", i)
	}
	assert.Equal(t, text, reassemble(chunks, 10))
}
