package telegram

import "strings"

// EscapeMarkdownV2 escapes MarkdownV2 special characters while preserving
// intentional formatting: fenced and inline code spans pass through
// untouched, bold and italic spans keep their markers with only the inner
// text escaped. An unpaired marker is left literal; if Telegram still
// rejects it, the sender falls back to plain text.
func EscapeMarkdownV2(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	runes := []rune(text)
	n := len(runes)
	var b strings.Builder
	b.Grow(len(text) * 2)

	i := 0
	for i < n {
		r := runes[i]

		if r == '`' && i+2 < n && runes[i+1] == '`' && runes[i+2] == '`' {
			if end := findClosingFence(runes, i+3); end >= 0 {
				for j := i; j <= end; j++ {
					b.WriteRune(runes[j])
				}
				i = end + 1
				continue
			}
		}

		if r == '`' {
			if end := findClosingRune(runes, i+1, '`'); end >= 0 {
				for j := i; j <= end; j++ {
					b.WriteRune(runes[j])
				}
				i = end + 1
				continue
			}
		}

		if r == '*' {
			double := i+1 < n && runes[i+1] == '*'
			start := i + 1
			marker := "*"
			if double {
				start = i + 2
				marker = "**"
			}
			if end := findClosingPattern(runes, start, marker); end >= 0 {
				b.WriteString(marker)
				for j := start; j < end; j++ {
					writeEscaped(&b, runes[j], escapeInFormatted)
				}
				b.WriteString(marker)
				i = end + len(marker)
				continue
			}
		}

		if r == '_' {
			if end := findClosingRune(runes, i+1, '_'); end >= 0 {
				b.WriteRune('_')
				for j := i + 1; j < end; j++ {
					writeEscaped(&b, runes[j], escapeInFormatted)
				}
				b.WriteRune('_')
				i = end + 1
				continue
			}
		}

		writeEscaped(&b, r, escapeOutside)
		i++
	}
	return b.String()
}

func writeEscaped(b *strings.Builder, r rune, needsEscape func(rune) bool) {
	if needsEscape(r) {
		b.WriteRune('\\')
	}
	b.WriteRune(r)
}

func findClosingFence(runes []rune, start int) int {
	for i := start; i+2 < len(runes); i++ {
		if runes[i] == '`' && runes[i+1] == '`' && runes[i+2] == '`' {
			return i + 2
		}
	}
	return -1
}

// findClosingRune stops at newlines so inline formatting never spans lines.
func findClosingRune(runes []rune, start int, closing rune) int {
	for i := start; i < len(runes); i++ {
		if runes[i] == closing {
			return i
		}
		if runes[i] == '\n' {
			return -1
		}
	}
	return -1
}

func findClosingPattern(runes []rune, start int, pattern string) int {
	pr := []rune(pattern)
	for i := start; i+len(pr) <= len(runes); i++ {
		match := true
		for j := range pr {
			if runes[i+j] != pr[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func escapeInFormatted(r rune) bool {
	switch r {
	case '\\', '`', '[', ']', '(', ')', '~', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
		return true
	}
	return false
}

func escapeOutside(r rune) bool {
	switch r {
	case '\\', '[', ']', '(', ')', '~', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
		return true
	}
	return false
}
