package ingestion

// Chunk splits text into overlapping fixed-size windows of runes. Windows
// start at 0 and advance by size−overlap; the final window may be shorter.
// The sequence is deterministic for a given (text, size, overlap), which
// makes reprocessing idempotent.
//
// Chunk assumes 0 <= overlap < size; the bounds are validated at
// configuration load, not here.
func Chunk(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)

	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
		start += size - overlap
	}

	return chunks
}
