package sparse

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// maxTokenLen drops tokens longer than this many runes, typically hashes
// and base64 blobs that would never match a query.
const maxTokenLen = 40

// Tokenizer splits text into lower-cased, stemmed terms with English
// stopwords removed.
type Tokenizer struct {
	stopwords map[string]struct{}
	stem      bool
}

// NewTokenizer returns a tokenizer that stems with the Snowball English stemmer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopwords: englishStopwords(), stem: true}
}

// Tokenize returns the terms of text in order, duplicates included.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if _, stop := t.stopwords[word]; stop {
			continue
		}
		if len([]rune(word)) > maxTokenLen {
			continue
		}
		if t.stem {
			word = english.Stem(word, false)
		}
		if word == "" {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// splitWords splits on anything that is not a letter or digit.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func englishStopwords() map[string]struct{} {
	stops := []string{
		"a", "about", "above", "after", "again", "against", "ain", "all", "am", "an",
		"and", "any", "are", "aren", "as", "at", "be", "because", "been", "before",
		"being", "below", "between", "both", "but", "by", "can", "couldn", "d", "did",
		"didn", "do", "does", "doesn", "doing", "don", "down", "during", "each", "few",
		"for", "from", "further", "had", "hadn", "has", "hasn", "have", "haven", "having",
		"he", "her", "here", "hers", "herself", "him", "himself", "his", "how", "i",
		"if", "in", "into", "is", "isn", "it", "its", "itself", "just", "ll",
		"m", "ma", "me", "mightn", "more", "most", "mustn", "my", "myself", "needn",
		"no", "nor", "not", "now", "o", "of", "off", "on", "once", "only",
		"or", "other", "our", "ours", "ourselves", "out", "over", "own", "re", "s",
		"same", "shan", "she", "should", "shouldn", "so", "some", "such", "t", "than",
		"that", "the", "their", "theirs", "them", "themselves", "then", "there", "these", "they",
		"this", "those", "through", "to", "too", "under", "until", "up", "ve", "very",
		"was", "wasn", "we", "were", "weren", "what", "when", "where", "which", "while",
		"who", "whom", "why", "will", "with", "won", "wouldn", "y", "you", "your",
		"yours", "yourself", "yourselves",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
