package docstruct

import (
	"fmt"

	"github.com/sbinet/go-hdf5"
	"gonum.org/v1/gonum/mat"
)

var _ Model = new(HDF5Model)

// HDF5Model reads the output of a model that was run on the batches
// written by BatchWriter. The output of batch n is stored in group
// batchn with the datasets logits [batch, classes], token_attention
// [batch*max_doc_len, max_sent_len, max_sent_len] and doc_attention
// [batch, max_doc_len, max_doc_len+1], all float32.
type HDF5Model struct {
	f *hdf5.File
}

func NewHDF5Model(f *hdf5.File) *HDF5Model {
	return &HDF5Model{f: f}
}

func (m *HDF5Model) Forward(batch *PaddedBatch) (*Output, error) {
	group, err := m.f.OpenGroup(fmt.Sprintf("batch%d", batch.Index))
	if err != nil {
		return nil, err
	}
	defer group.Close()

	logits, dims, err := readData(group, "logits")
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("logits have %d dimensions, expected 2", len(dims))
	}

	b, d, s := batch.BatchSize, batch.MaxDocLen, batch.MaxSentLen

	tokenAtt, _, err := readData(group, "token_attention")
	if err != nil {
		return nil, err
	}
	if len(tokenAtt) != b*d*s*s {
		return nil, fmt.Errorf("token attention has %d values, expected %d", len(tokenAtt), b*d*s*s)
	}

	docAtt, _, err := readData(group, "doc_attention")
	if err != nil {
		return nil, err
	}
	if len(docAtt) != b*d*(d+1) {
		return nil, fmt.Errorf("document attention has %d values, expected %d", len(docAtt), b*d*(d+1))
	}

	return &Output{
		Logits:         denseFromFloat32(int(dims[0]), int(dims[1]), logits),
		TokenAttention: splitMatrices(tokenAtt, b*d, s, s),
		DocAttention:   splitMatrices(docAtt, b, d, d+1),
	}, nil
}

func readData(g *hdf5.Group, name string) ([]float32, []uint, error) {
	dset, err := g.OpenDataset(name)
	if err != nil {
		return nil, nil, err
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, nil, err
	}

	n := 1
	for _, dim := range dims {
		n *= int(dim)
	}
	if n == 0 {
		return nil, nil, fmt.Errorf("dataset %s is empty", name)
	}

	data := make([]float32, n)
	if err := dset.Read(&data[0]); err != nil {
		return nil, nil, fmt.Errorf("cannot read %s: %w", name, err)
	}

	return data, dims, nil
}

func denseFromFloat32(rows, cols int, data []float32) *mat.Dense {
	return mat.NewDense(rows, cols, float32ToFloat64(data))
}

// splitMatrices splits row-major data in n matrices of rows x cols.
func splitMatrices(data []float32, n, rows, cols int) []*mat.Dense {
	matrices := make([]*mat.Dense, n)
	size := rows * cols
	for idx := range matrices {
		matrices[idx] = denseFromFloat32(rows, cols, data[idx*size:(idx+1)*size])
	}

	return matrices
}
