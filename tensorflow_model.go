package docstruct

import (
	"fmt"

	"github.com/danieldk/tensorflow"
	"gonum.org/v1/gonum/mat"
)

var _ Model = new(TensorFlowModel)

// TensorFlowOps are the names of the graph operations that a
// TensorFlowModel feeds and fetches.
type TensorFlowOps struct {
	TokenIdxs   string `toml:"token_idxs"`
	TokenMask   string `toml:"mask_tokens"`
	SentMask    string `toml:"mask_sents"`
	SentLens    string `toml:"sent_l"`
	DocLens     string `toml:"doc_l"`
	ParserMask1 string `toml:"mask_parser_1"`
	ParserMask2 string `toml:"mask_parser_2"`

	Logits         string
	TokenAttention string `toml:"token_attention"`
	DocAttention   string `toml:"doc_attention"`
}

// TensorFlowModel runs the classifier graph in a TensorFlow session.
type TensorFlowModel struct {
	session *tensorflow.Session
	ops     TensorFlowOps
	classes int
}

func NewTensorFlowModel(session *tensorflow.Session, ops TensorFlowOps, classes int) *TensorFlowModel {
	return &TensorFlowModel{
		session: session,
		ops:     ops,
		classes: classes,
	}
}

func (m *TensorFlowModel) Forward(batch *PaddedBatch) (*Output, error) {
	b, d, s := batch.BatchSize, batch.MaxDocLen, batch.MaxSentLen

	inputs := map[string]tensorflow.Tensor{
		m.ops.TokenIdxs: buildInt32Tensor([]int{b, d, s}, batch.TokenIdxs),
		m.ops.TokenMask: buildTensor([]int{b, d, s}, batch.TokenMask),
		m.ops.SentMask:  buildTensor([]int{b, d}, batch.SentMask),
		m.ops.SentLens:  buildInt32Tensor([]int{b, d}, batch.SentLens),
		m.ops.DocLens:   buildInt32Tensor([]int{b}, batch.DocLens),
	}

	// The parser masks are shared by all documents of the batch.
	parserMask1 := tensorflow.NewFloat32Tensor([]int{b, d, d})
	parserMask2 := tensorflow.NewFloat32Tensor([]int{b, d, d})
	for i := 0; i < b; i++ {
		parserMask1.Assign([]int{i}, batch.ParserMask1)
		parserMask2.Assign([]int{i}, batch.ParserMask2)
	}
	inputs[m.ops.ParserMask1] = parserMask1
	inputs[m.ops.ParserMask2] = parserMask2

	fetches := []string{m.ops.Logits, m.ops.TokenAttention, m.ops.DocAttention}
	outputs, err := m.session.Run(inputs, fetches)
	if err != nil {
		return nil, err
	}

	tensors := make([]*tensorflow.Float32Tensor, len(fetches))
	for idx, name := range fetches {
		tensor, ok := outputs[name].(*tensorflow.Float32Tensor)
		if !ok {
			return nil, fmt.Errorf("output %s is not a float32 tensor", name)
		}
		tensors[idx] = tensor
	}

	output := &Output{
		Logits:         mat.NewDense(b, m.classes, nil),
		TokenAttention: make([]*mat.Dense, b*d),
		DocAttention:   make([]*mat.Dense, b),
	}

	for i := 0; i < b; i++ {
		logits, err := fetchedMatrix(m.ops.Logits, tensors[0].Get([]int{i}), 1, m.classes)
		if err != nil {
			return nil, err
		}
		output.Logits.SetRow(i, logits.RawRowView(0))

		if output.DocAttention[i], err = fetchedMatrix(m.ops.DocAttention, tensors[2].Get([]int{i}), d, d+1); err != nil {
			return nil, err
		}
	}

	for slot := 0; slot < b*d; slot++ {
		if output.TokenAttention[slot], err = fetchedMatrix(m.ops.TokenAttention, tensors[1].Get([]int{slot}), s, s); err != nil {
			return nil, err
		}
	}

	return output, nil
}

// fetchedMatrix converts a fetched row-major block to a rows x cols
// matrix.
func fetchedMatrix(name string, data []float32, rows, cols int) (*mat.Dense, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%s has %d values per entry, expected %dx%d", name, len(data), rows, cols)
	}

	return mat.NewDense(rows, cols, float32ToFloat64(data)), nil
}

func (m *TensorFlowModel) Close() {
	m.session.Close()
}

// buildTensor creates a tensor of the given shape, filling it with data
// along the first dimension.
func buildTensor(shape []int, data []float32) *tensorflow.Float32Tensor {
	tensor := tensorflow.NewFloat32Tensor(shape)

	stride := len(data) / shape[0]
	for idx := 0; idx < shape[0]; idx++ {
		tensor.Assign([]int{idx}, data[idx*stride:(idx+1)*stride])
	}

	return tensor
}

// buildInt32Tensor is buildTensor for integer inputs such as token
// indices and lengths.
func buildInt32Tensor(shape []int, data []int32) *tensorflow.Int32Tensor {
	tensor := tensorflow.NewInt32Tensor(shape)

	stride := len(data) / shape[0]
	for idx := 0; idx < shape[0]; idx++ {
		tensor.Assign([]int{idx}, data[idx*stride:(idx+1)*stride])
	}

	return tensor
}

func float32ToFloat64(data []float32) []float64 {
	converted := make([]float64, len(data))
	for idx, val := range data {
		converted[idx] = float64(val)
	}

	return converted
}
