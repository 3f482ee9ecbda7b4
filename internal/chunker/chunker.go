// Package chunker 将提取后的文档文本切分为带重叠的段落。
//
// 切分是递归的：按分隔符优先级（段落、换行、空格、逐字符兜底）把文本拆成
// 不超过窗口大小的片段，再贪心合并成窗口，最后把上一窗口的尾部若干字符
// 作为重叠前缀拼到下一块的头部。任何输入字符都出现在至少一个输出块中，
// 输出对相同输入与参数完全确定。
package chunker

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 是未显式配置时使用的分隔符优先级。
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter 按固定的 size/overlap/separators 策略切分文本。
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New 创建一个 Splitter。overlap 必须小于 size，否则窗口无法推进。
func New(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunker: size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunker: overlap must be in [0, size)")
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{size: size, overlap: overlap, separators: separators}, nil
}

// Split 将文本切分为有序的段落序列。空输入返回 nil。
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	// 窗口预算：非首块要预留 overlap 个字符给重叠前缀，
	// 统一用 size-overlap 作为窗口上限可保证每个输出块都不超过 size。
	window := s.size - s.overlap
	if window <= 0 {
		window = s.size
	}

	fragments := s.fragment(text, s.separators, window)
	windows := mergeFragments(fragments, window)

	// 拼接重叠前缀。前缀取的是当前窗口之前的原文尾部，而非上一输出块，
	// 因此即使窗口较短，重叠也严格来自相邻原文。
	chunks := make([]string, 0, len(windows))
	var consumed []rune
	for i, w := range windows {
		if i == 0 {
			chunks = append(chunks, w)
		} else {
			prefix := tailRunes(consumed, s.overlap)
			chunks = append(chunks, prefix+w)
		}
		consumed = append(consumed, []rune(w)...)
	}
	return chunks
}

// fragment 递归地把文本拆成长度不超过 limit 的片段，分隔符保留在片段尾部，
// 因此所有片段按序拼接后恰好还原原文。
func (s *Splitter) fragment(text string, separators []string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardSlice(text, limit)
	}

	sep := separators[0]
	rest := separators[1:]
	if sep == "" {
		return hardSlice(text, limit)
	}

	parts := splitAfter(text, sep)
	if len(parts) == 1 {
		// 该分隔符在文本中不出现，降级到下一优先级
		return s.fragment(text, rest, limit)
	}

	var out []string
	for _, part := range parts {
		if utf8.RuneCountInString(part) <= limit {
			out = append(out, part)
		} else {
			out = append(out, s.fragment(part, rest, limit)...)
		}
	}
	return out
}

// mergeFragments 贪心地把相邻片段合并到不超过 limit 的窗口中。
func mergeFragments(fragments []string, limit int) []string {
	var windows []string
	var current strings.Builder
	currentLen := 0

	for _, frag := range fragments {
		fragLen := utf8.RuneCountInString(frag)
		if currentLen > 0 && currentLen+fragLen > limit {
			windows = append(windows, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(frag)
		currentLen += fragLen
	}
	if currentLen > 0 {
		windows = append(windows, current.String())
	}
	return windows
}

// hardSlice 按 limit 个字符硬切，是所有分隔符都无法奏效时的兜底。
func hardSlice(text string, limit int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// splitAfter 在每个分隔符之后断开并保留分隔符，丢弃可能出现的尾部空串。
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tailRunes 返回 runes 的最后 n 个字符。
func tailRunes(runes []rune, n int) string {
	if n <= 0 || len(runes) == 0 {
		return ""
	}
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[len(runes)-n:])
}
