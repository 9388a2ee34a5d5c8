package docstruct

import (
	"errors"

	"github.com/Chunlinx/docstruct/arborescence"
)

// A UnitTree is the tree extracted for a sentence or a document. Err is
// set when no tree could be extracted.
type UnitTree struct {
	arborescence.Arborescence
	Err error
}

// SentenceStructure is the token-level tree of a sentence.
type SentenceStructure struct {
	Words []string
	Tree  UnitTree
}

// DocumentStructure holds the latent structures of a document.
type DocumentStructure struct {
	// Counter numbers documents in input order, starting at 0.
	Counter int

	Sentences []SentenceStructure

	// Tree is the sentence-level tree of the document.
	Tree UnitTree

	// Importance is the normalized attention received by each sentence.
	Importance []float64
}

// A Writer stores document structures.
type Writer interface {
	Write(doc DocumentStructure) error
	Close() error
}

var _ Writer = MultiWriter{}

// MultiWriter writes every document structure to all of its writers.
type MultiWriter []Writer

func (mw MultiWriter) Write(doc DocumentStructure) error {
	for _, w := range mw {
		if err := w.Write(doc); err != nil {
			return err
		}
	}

	return nil
}

func (mw MultiWriter) Close() error {
	var errs []error
	for _, w := range mw {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
