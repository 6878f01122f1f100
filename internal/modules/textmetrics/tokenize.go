// Package textmetrics scores filing text: readability (Gunning FOG and
// Flesch reading ease) and Loughran-McDonald uncertainty and tone.
package textmetrics

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var quoteReplacer = strings.NewReplacer("’", "'", "‘", "'")

// CleanHTML lower-cases raw filing markup and returns its text content.
// Script and style elements are dropped.
func CleanHTML(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ToLower(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to parse filing HTML: %w", err)
	}
	doc.Find("script, style").Remove()
	return doc.Text(), nil
}

// Tokenize splits text into lower-case words. A word is a run of letters
// and digits, optionally joined by apostrophes or hyphens; punctuation is
// not returned.
func Tokenize(text string) []string {
	text = quoteReplacer.Replace(norm.NFKC.String(text))

	var (
		words []string
		b     strings.Builder
	)
	flush := func() {
		w := strings.Trim(b.String(), "'-")
		if w != "" {
			words = append(words, w)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case (r == '\'' || r == '-') && b.Len() > 0 && i+1 < len(runes) && isWordRune(runes[i+1]):
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// CountSentences counts runs of text terminated by '.', '!' or '?', plus a
// trailing unterminated run. A terminator directly followed by a letter or
// digit ("3.5") does not end a sentence.
func CountSentences(text string) int {
	runes := []rune(text)
	n := 0
	inSentence := false
	for i, r := range runes {
		switch {
		case r == '.' || r == '!' || r == '?':
			next := rune(' ')
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if inSentence && (unicode.IsSpace(next) || next == '.' || next == '!' || next == '?' || next == '"' || next == '\'') {
				n++
				inSentence = false
			}
		case isWordRune(r):
			inSentence = true
		}
	}
	if inSentence {
		n++
	}
	return n
}

// CountSyllables estimates syllables from vowel groups. A trailing silent
// 'e' is dropped except in "-le" endings. Words without letters count 0.
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	hasLetter := false
	groups := 0
	prevVowel := false
	for _, r := range word {
		if !unicode.IsLetter(r) {
			prevVowel = false
			continue
		}
		hasLetter = true
		v := isVowel(r)
		if v && !prevVowel {
			groups++
		}
		prevVowel = v
	}
	if !hasLetter {
		return 0
	}

	if n := len(word); groups > 1 && n > 2 && word[n-1] == 'e' && !isVowel(rune(word[n-2])) &&
		!(word[n-2] == 'l' && !isVowel(rune(word[n-3]))) {
		groups--
	}
	if groups == 0 {
		groups = 1
	}
	return groups
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
