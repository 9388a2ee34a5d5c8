package docstruct

import (
	"gonum.org/v1/gonum/mat"
)

// SliceSquare returns a copy of the k x k block of m that starts in row 0
// and column colOffset.
func SliceSquare(m mat.Matrix, colOffset, k int) *mat.Dense {
	if k == 0 {
		return &mat.Dense{}
	}

	block := mat.NewDense(k, k, nil)
	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			block.Set(r, c, m.At(r, colOffset+c))
		}
	}

	return block
}

// RootedWeights prepends a virtual root to an attention matrix. The root
// has weight 1 to every node and no node has an edge to the root.
func RootedWeights(att mat.Matrix) *mat.Dense {
	k, _ := att.Dims()

	w := mat.NewDense(k+1, k+1, nil)
	for c := 1; c <= k; c++ {
		w.Set(0, c, 1)
	}

	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			w.Set(r+1, c+1, att.At(r, c))
		}
	}

	return w
}

// SentenceImportance returns the attention received by each sentence of a
// document. docAtt is the document attention matrix of the model, where
// column 0 holds the model's root attention. The importances of masked
// sentences are zero. The importances are normalized to sum to one,
// unless they are all zero, in which case the second return value is
// false.
func SentenceImportance(docAtt mat.Matrix, sentMask []float32) ([]float64, bool) {
	rows, _ := docAtt.Dims()

	importance := make([]float64, len(sentMask))
	var total float64
	for j, mask := range sentMask {
		for r := 0; r < rows; r++ {
			importance[j] += docAtt.At(r, j+1)
		}
		importance[j] *= float64(mask)
		total += importance[j]
	}

	if total == 0 {
		return importance, false
	}

	for j := range importance {
		importance[j] /= total
	}

	return importance, true
}
