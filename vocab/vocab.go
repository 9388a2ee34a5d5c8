// Copyright 2026 The docstruct Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vocab

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// A Vocabulary is a bijection between words and token indices. Index 0
// is reserved for padding, so the first word has index 1.
type Vocabulary struct {
	indices map[string]int
	words   []string
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{make(map[string]int), make([]string, 0)}
}

// Add returns the index of a word, adding it when it is not known yet.
func (v *Vocabulary) Add(word string) int {
	idx, ok := v.indices[word]

	if !ok {
		idx = len(v.words) + 1
		v.indices[word] = idx
		v.words = append(v.words, word)
	}

	return idx
}

func (v *Vocabulary) Index(word string) (int, bool) {
	idx, ok := v.indices[word]
	return idx, ok
}

func (v *Vocabulary) Word(idx int) (string, bool) {
	if idx < 1 || idx > len(v.words) {
		return "", false
	}

	return v.words[idx-1], true
}

func (v *Vocabulary) Size() int {
	return len(v.words)
}

// Read replaces the vocabulary by the words in reader, one word per line.
// The word on line n gets index n.
func (v *Vocabulary) Read(reader io.Reader) error {
	var words []string
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}

		words = append(words, word)
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	indices := make(map[string]int)
	for idx, word := range words {
		if _, ok := indices[word]; ok {
			return fmt.Errorf("duplicate word in vocabulary: %s", word)
		}
		indices[word] = idx + 1
	}

	v.words = words
	v.indices = indices

	return nil
}

func (v *Vocabulary) Write(writer io.Writer) error {
	for _, word := range v.words {
		if _, err := fmt.Fprintln(writer, word); err != nil {
			return err
		}
	}

	return nil
}
