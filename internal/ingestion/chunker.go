package ingestion

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// ChunkText splits markdown into reading chunks of roughly chunkSize words.
// Paragraph boundaries are preferred: paragraphs accumulate into a chunk
// until the next one would push past the limit. A paragraph bigger than the
// limit on its own is split at sentence boundaries instead, and a single
// oversized sentence is hard-split on words as a last resort.
func ChunkText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = 200
	}

	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = nil
			currentWords = 0
		}
	}

	for _, paragraph := range splitParagraphs(text) {
		words := wordCount(paragraph)

		if words > chunkSize {
			flush()
			chunks = append(chunks, splitLargeParagraph(paragraph, chunkSize)...)
			continue
		}

		if currentWords+words > chunkSize {
			flush()
		}
		current = append(current, paragraph)
		currentWords += words
	}
	flush()

	return chunks
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}

// splitLargeParagraph groups sentences into word-bounded pieces.
func splitLargeParagraph(paragraph string, chunkSize int) []string {
	var pieces []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) > 0 {
			pieces = append(pieces, strings.Join(current, " "))
			current = nil
			currentWords = 0
		}
	}

	for _, sentence := range splitSentences(paragraph) {
		words := wordCount(sentence)

		if words > chunkSize {
			flush()
			pieces = append(pieces, splitByWords(sentence, chunkSize)...)
			continue
		}

		if currentWords+words > chunkSize {
			flush()
		}
		current = append(current, sentence)
		currentWords += words
	}
	flush()

	return pieces
}

// splitSentences uses the prose segmenter, falling back to the whole block
// as one sentence if segmentation fails.
func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	var sentences []string
	for _, sentence := range doc.Sentences() {
		s := strings.TrimSpace(sentence.Text)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func splitByWords(text string, chunkSize int) []string {
	words := strings.Fields(text)
	var pieces []string
	for i := 0; i < len(words); i += chunkSize {
		end := i + chunkSize
		if end > len(words) {
			end = len(words)
		}
		pieces = append(pieces, strings.Join(words[i:end], " "))
	}
	return pieces
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
