package docstruct

import (
	"fmt"
	"math"
	"reflect"

	"github.com/sbinet/go-hdf5"
)

var _ Writer = new(HDF5Writer)

// HDF5Writer stores document structures in an HDF5 file, one group per
// document. Failed units have no heads and a NaN score.
type HDF5Writer struct {
	f *hdf5.File
}

func NewHDF5Writer(f *hdf5.File) *HDF5Writer {
	return &HDF5Writer{f: f}
}

func (hw *HDF5Writer) Close() error {
	return hw.f.Flush(hdf5.F_SCOPE_GLOBAL)
}

func (hw *HDF5Writer) Write(doc DocumentStructure) error {
	group, err := hw.f.CreateGroup(fmt.Sprintf("doc%d", doc.Counter))
	if err != nil {
		return err
	}
	defer group.Close()

	scores := make([]float64, len(doc.Sentences))
	for j, sent := range doc.Sentences {
		scores[j] = treeScore(sent.Tree)
		if err := writeHeads(group, fmt.Sprintf("sentence_heads_%d", j), sent.Tree); err != nil {
			return err
		}
	}

	if err := writeData(group, "sentence_scores", []uint{uint(len(scores))}, scores); err != nil {
		return err
	}

	if err := writeHeads(group, "doc_heads", doc.Tree); err != nil {
		return err
	}

	if err := writeData(group, "doc_score", []uint{1}, []float64{treeScore(doc.Tree)}); err != nil {
		return err
	}

	return writeData(group, "importance", []uint{uint(len(doc.Importance))}, doc.Importance)
}

func treeScore(tree UnitTree) float64 {
	if tree.Err != nil {
		return math.NaN()
	}

	return tree.Score
}

func writeHeads(g *hdf5.Group, name string, tree UnitTree) error {
	if tree.Err != nil {
		return nil
	}

	heads := make([]int32, len(tree.Heads))
	for idx, head := range tree.Heads {
		heads[idx] = int32(head)
	}

	return writeData(g, name, []uint{uint(len(heads))}, heads)
}

// writeData writes a slice as a dataset with the given dimensions. Empty
// slices are not written.
func writeData(g *hdf5.Group, name string, dims []uint,
	data interface{}) error {
	value := reflect.ValueOf(data)
	if value.Len() == 0 {
		return nil
	}

	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	first := value.Index(0)

	dtype, err := hdf5.NewDatatypeFromValue(first.Interface())
	if err != nil {
		return err
	}

	dset, err := g.CreateDataset(name, dtype, space)
	if err != nil {
		return err
	}
	defer dset.Close()

	return dset.Write(first.Addr().Interface())
}
