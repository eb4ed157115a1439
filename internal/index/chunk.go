// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"strings"
	"unicode"
)

// ChunkText splits content into chunk texts. It is a pure function of the
// content and the two limits:
//
//   - content with at most singleWords words is one chunk;
//   - longer content is packed into chunks of at most maxWords words,
//     splitting at paragraph breaks first, then sentence ends, and only
//     then between words.
//
// Words are never cut. Blank content yields no chunks.
func ChunkText(content string, singleWords, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = 350
	}
	if singleWords <= 0 || singleWords > maxWords {
		singleWords = maxWords
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if countWords(content) <= singleWords {
		return []string{normalizeSpace(content)}
	}

	var units []string
	for _, para := range paragraphs(content) {
		if countWords(para) <= maxWords {
			units = append(units, para)
			continue
		}
		for _, sent := range sentences(para) {
			if countWords(sent) <= maxWords {
				units = append(units, sent)
				continue
			}
			units = append(units, wordWindows(sent, maxWords)...)
		}
	}

	return pack(units, maxWords)
}

// pack greedily joins consecutive units while the running chunk stays
// within maxWords.
func pack(units []string, maxWords int) []string {
	var (
		chunks []string
		cur    []string
		words  int
	)
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, "\n\n"))
			cur, words = nil, 0
		}
	}
	for _, u := range units {
		n := countWords(u)
		if words+n > maxWords {
			flush()
		}
		cur = append(cur, u)
		words += n
	}
	flush()
	return chunks
}

func paragraphs(content string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		if p = normalizeSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences splits after '.', '!' or '?' followed by whitespace.
func sentences(para string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(para)
	for i, r := range runes {
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func wordWindows(text string, maxWords int) []string {
	words := strings.Fields(text)
	var out []string
	for i := 0; i < len(words); i += maxWords {
		end := min(i+maxWords, len(words))
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
