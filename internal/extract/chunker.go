package extract

// SplitText splits text into chunks of at most size characters where each
// chunk after the first starts with the last overlap characters of its
// predecessor. The shared window keeps a sentence that straddles a boundary
// present in both chunks. Boundaries are counted in runes so multibyte text
// never splits mid-character.
func SplitText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
