package usecase

import "strings"

// SplitText breaks long text into chunks of at most maxLen characters,
// preferring sentence endings, then newlines, then spaces, and finally a
// hard cut when nothing else fits. Whitespace-only trailing content is
// dropped.
func SplitText(text string, maxLen int) []string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\n\n", "\n")

	var chunks []string
	runes := []rune(text)

	for len(runes) > maxLen {
		window := string(runes[:maxLen])

		splitAt := -1
		for _, p := range []string{".", "!", "?"} {
			if pos := strings.LastIndex(window, p); pos > splitAt {
				splitAt = pos
			}
		}
		if splitAt == -1 {
			splitAt = strings.LastIndex(window, "\n")
		}
		if splitAt == -1 {
			splitAt = strings.LastIndex(window, " ")
		}

		splitPoint := maxLen
		if splitAt != -1 {
			// Index within the window is a byte offset; convert back to runes.
			splitPoint = len([]rune(window[:splitAt])) + 1
		}

		chunks = append(chunks, string(runes[:splitPoint]))
		runes = runes[splitPoint:]
	}

	if strings.TrimSpace(string(runes)) != "" {
		chunks = append(chunks, string(runes))
	}

	return chunks
}
