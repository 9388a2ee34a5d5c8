package docstruct

import (
	"fmt"

	"github.com/sbinet/go-hdf5"
)

// BatchWriter writes padded batches to an HDF5 file, so that a model can
// be run outside this program. Batch n is stored in group batchn, the
// group that HDF5Model reads the model output of batch n from.
type BatchWriter struct {
	f *hdf5.File
}

func NewBatchWriter(f *hdf5.File) *BatchWriter {
	return &BatchWriter{f: f}
}

func (bw *BatchWriter) Write(batch *PaddedBatch) error {
	group, err := bw.f.CreateGroup(fmt.Sprintf("batch%d", batch.Index))
	if err != nil {
		return err
	}
	defer group.Close()

	b := uint(batch.BatchSize)
	d := uint(batch.MaxDocLen)
	s := uint(batch.MaxSentLen)

	datasets := []struct {
		name string
		dims []uint
		data interface{}
	}{
		{"token_idxs", []uint{b, d, s}, batch.TokenIdxs},
		{"mask_tokens", []uint{b, d, s}, batch.TokenMask},
		{"sent_l", []uint{b, d}, batch.SentLens},
		{"mask_sents", []uint{b, d}, batch.SentMask},
		{"doc_l", []uint{b}, batch.DocLens},
		{"gold_labels", []uint{b}, batch.GoldLabels},
		{"mask_parser_1", []uint{d, d}, batch.ParserMask1},
		{"mask_parser_2", []uint{d, d}, batch.ParserMask2},
	}

	for _, ds := range datasets {
		if err := writeData(group, ds.name, ds.dims, ds.data); err != nil {
			return fmt.Errorf("cannot write %s: %w", ds.name, err)
		}
	}

	return nil
}

func (bw *BatchWriter) Close() error {
	return bw.f.Flush(hdf5.F_SCOPE_GLOBAL)
}
