package docstruct

import (
	"bufio"
	"strconv"

	"github.com/danieldk/conllx"
)

var _ Writer = new(CoNLLXWriter)

// CoNLLXWriter writes the sentences of documents in CoNLL-X format. The
// head column contains the extracted token-level tree. The features of
// the first token of a sentence hold the document counter, the head of
// the sentence in the document tree and its importance.
type CoNLLXWriter struct {
	buf    *bufio.Writer
	writer *conllx.Writer
}

func NewCoNLLXWriter(buf *bufio.Writer) *CoNLLXWriter {
	return &CoNLLXWriter{
		buf:    buf,
		writer: conllx.NewWriter(buf),
	}
}

func (cw *CoNLLXWriter) Write(doc DocumentStructure) error {
	for j, sent := range doc.Sentences {
		if len(sent.Words) == 0 {
			continue
		}

		sentence := make(conllx.Sentence, len(sent.Words))

		for idx, word := range sent.Words {
			sentence[idx].SetForm(word)
			if sent.Tree.Err == nil {
				sentence[idx].SetHead(uint(sent.Tree.Heads[idx]))
			}
		}

		features := map[string]string{
			"doc": strconv.Itoa(doc.Counter),
		}
		if doc.Tree.Err == nil && j < len(doc.Tree.Heads) {
			features["dochead"] = strconv.Itoa(doc.Tree.Heads[j])
		}
		if j < len(doc.Importance) {
			features["importance"] = strconv.FormatFloat(doc.Importance[j], 'f', 4, 64)
		}
		sentence[0].SetFeatures(features)

		if err := cw.writer.WriteSentence(sentence); err != nil {
			return err
		}
	}

	return nil
}

func (cw *CoNLLXWriter) Close() error {
	return cw.buf.Flush()
}
