package docstruct

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/danieldk/conllx"

	"github.com/Chunlinx/docstruct/vocab"
)

// A SentenceReader reads CoNLL-X sentences.
type SentenceReader interface {
	ReadSentence() (conllx.Sentence, error)
}

// CorpusReader reads documents from a CoNLL-X corpus. The first token of
// every sentence has a doc feature with the document identifier and a
// label feature with the gold label. Consecutive sentences with the same
// identifier form a document.
type CorpusReader struct {
	reader  SentenceReader
	vocab   *vocab.Vocabulary
	unknown int
}

// NewCorpusReader returns a reader that maps words that are not in the
// vocabulary to the index of the unknown word.
func NewCorpusReader(reader SentenceReader, v *vocab.Vocabulary, unknown string) (*CorpusReader, error) {
	unknownIdx, ok := v.Index(unknown)
	if !ok {
		return nil, fmt.Errorf("unknown word %q is not in the vocabulary", unknown)
	}

	return &CorpusReader{
		reader:  reader,
		vocab:   v,
		unknown: unknownIdx,
	}, nil
}

// ReadAll reads all documents of the corpus.
func (cr *CorpusReader) ReadAll() ([]Document, error) {
	var docs []Document
	var current string

	for n := 0; ; n++ {
		sentence, err := cr.reader.ReadSentence()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}

			return nil, err
		}

		if len(sentence) == 0 {
			continue
		}

		id, label, err := documentFeatures(sentence[0])
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", n, err)
		}

		if len(docs) == 0 || id != current {
			docs = append(docs, Document{Label: label})
			current = id
		}

		doc := &docs[len(docs)-1]
		doc.Sentences = append(doc.Sentences, cr.realize(sentence))
	}
}

func (cr *CorpusReader) realize(sentence conllx.Sentence) Sentence {
	sent := make(Sentence, len(sentence))
	for idx, token := range sentence {
		sent[idx] = Token(cr.unknown)

		if form, ok := token.Form(); ok {
			if wordIdx, ok := cr.vocab.Index(form); ok {
				sent[idx] = Token(wordIdx)
			}
		}
	}

	return sent
}

func documentFeatures(token conllx.Token) (string, int, error) {
	features, ok := token.Features()
	if !ok {
		return "", 0, errors.New("token without features")
	}

	fm := features.FeaturesMap()

	id, ok := fm["doc"]
	if !ok {
		return "", 0, errors.New("no doc feature")
	}

	labelVal, ok := fm["label"]
	if !ok {
		return "", 0, errors.New("no label feature")
	}

	label, err := strconv.Atoi(labelVal)
	if err != nil {
		return "", 0, fmt.Errorf("invalid label: %w", err)
	}

	return id, label, nil
}
