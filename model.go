package docstruct

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// A Model is a document classifier that exposes its attention matrices.
type Model interface {
	Forward(batch *PaddedBatch) (*Output, error)
}

// Output is the result of a forward pass of a Model.
type Output struct {
	// Logits has shape [BatchSize, classes].
	Logits *mat.Dense

	// TokenAttention holds one [MaxSentLen, MaxSentLen] matrix per sentence
	// slot (see PaddedBatch.Slot).
	TokenAttention []*mat.Dense

	// DocAttention holds one [MaxDocLen, MaxDocLen+1] matrix per document.
	// Column 0 contains the attention to the model's own root.
	DocAttention []*mat.Dense
}

// Check verifies that the output shapes match the batch.
func (o *Output) Check(batch *PaddedBatch) error {
	if o.Logits == nil {
		return fmt.Errorf("model returned no logits")
	}
	if r, _ := o.Logits.Dims(); r != batch.BatchSize {
		return fmt.Errorf("logits for %d documents, batch has %d", r, batch.BatchSize)
	}

	if len(o.TokenAttention) != batch.BatchSize*batch.MaxDocLen {
		return fmt.Errorf("token attention for %d sentence slots, batch has %d",
			len(o.TokenAttention), batch.BatchSize*batch.MaxDocLen)
	}
	for slot, att := range o.TokenAttention {
		if att == nil {
			return fmt.Errorf("no token attention for slot %d", slot)
		}
		if r, c := att.Dims(); r != batch.MaxSentLen || c != batch.MaxSentLen {
			return fmt.Errorf("token attention of slot %d has shape %dx%d, expected %dx%d",
				slot, r, c, batch.MaxSentLen, batch.MaxSentLen)
		}
	}

	if len(o.DocAttention) != batch.BatchSize {
		return fmt.Errorf("document attention for %d documents, batch has %d",
			len(o.DocAttention), batch.BatchSize)
	}
	for doc, att := range o.DocAttention {
		if att == nil {
			return fmt.Errorf("no document attention for document %d", doc)
		}
		if r, c := att.Dims(); r != batch.MaxDocLen || c != batch.MaxDocLen+1 {
			return fmt.Errorf("document attention of document %d has shape %dx%d, expected %dx%d",
				doc, r, c, batch.MaxDocLen, batch.MaxDocLen+1)
		}
	}

	return nil
}

// Predictions returns the highest scoring class of each document.
func (o *Output) Predictions() []int {
	rows, cols := o.Logits.Dims()
	predictions := make([]int, rows)

	for r := 0; r < rows; r++ {
		best := 0
		for c := 1; c < cols; c++ {
			if o.Logits.At(r, c) > o.Logits.At(r, best) {
				best = c
			}
		}
		predictions[r] = best
	}

	return predictions
}
