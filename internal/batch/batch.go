// Package batch splits response text into word-count-bounded chunks that
// are spoken one at a time.
//
// Words are counted by scanning for the ASCII space character only. Runs
// of spaces count as several (empty) words, and tabs or newlines are not
// treated as separators.
package batch

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultWordsPerBatch is the batch size used when none is configured.
const DefaultWordsPerBatch = 5

// separator terminates every word, including the last one.
const separator = ' '

// ErrInvalidBatchSize is returned when the words-per-batch value is not positive.
var ErrInvalidBatchSize = errors.New("words per batch must be positive")

// Batch splits text into ordered batches of exactly wordsPerBatch
// space-terminated words. A single space is appended to text first so the
// final word is terminated like the others; whatever is left after the
// last full batch becomes one trailing remainder batch.
//
// Joining the returned batches yields text + " " exactly.
func Batch(text string, wordsPerBatch int) ([]string, error) {
	if wordsPerBatch <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, wordsPerBatch)
	}

	padded := text + string(separator)
	full := CountWords(padded) / wordsPerBatch

	batches := make([]string, 0, full+1)
	cursor := 0
	for i := 0; i < full; i++ {
		start := cursor
		words := 0
		for words < wordsPerBatch {
			if padded[cursor] == separator {
				words++
			}
			cursor++
		}
		batches = append(batches, padded[start:cursor])
	}

	if cursor < len(padded) {
		batches = append(batches, padded[cursor:])
	}

	return batches, nil
}

// CountWords returns the number of space characters in text, which is the
// word count Batch works with once the trailing separator is added.
func CountWords(text string) int {
	return strings.Count(text, string(separator))
}
