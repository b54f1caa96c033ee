// Copyright (c) 2025 Northbound System
package generator

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoder lazily initializes a shared cl100k_base encoder, the same
// encoding and lazy-init-with-fallback pattern used for token-budgeted
// chunking elsewhere in the retrieved example pack. A failed encoder load
// degrades to an approximate word count rather than failing generation.
var (
	tokenEncoderOnce sync.Once
	tokenEncoder     *tiktoken.Tiktoken
)

func countTokens(text string) int {
	tokenEncoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenEncoder = enc
		}
	})
	if tokenEncoder == nil {
		return approxWordCount(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

func approxWordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			count++
		}
		inWord = !isSpace
	}
	return count
}
