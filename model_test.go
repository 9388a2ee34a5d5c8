package docstruct

import (
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestOutputCheck(t *testing.T) {
	batch, ok := DefaultBatcher.Pad([]Document{documentOfLens(0, 2, 3)})
	if !ok {
		t.Fatal("batch was rejected")
	}

	output, err := (&fakeModel{classes: 3, nanSlot: -1}).Forward(batch)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if err := output.Check(batch); err != nil {
		t.Errorf("Check: %v", err)
	}

	docAtt := output.DocAttention[0]
	output.DocAttention[0] = nil
	if err := output.Check(batch); err == nil {
		t.Error("expected an error for a nil document attention")
	}
	output.DocAttention[0] = docAtt

	tokenAtt := output.TokenAttention[1]
	output.TokenAttention[1] = nil
	if err := output.Check(batch); err == nil {
		t.Error("expected an error for a nil token attention")
	}
	output.TokenAttention[1] = tokenAtt

	output.DocAttention[0] = mat.NewDense(2, 2, nil)
	if err := output.Check(batch); err == nil {
		t.Error("expected an error for a document attention without root column")
	}

	output.TokenAttention = output.TokenAttention[:1]
	if err := output.Check(batch); err == nil {
		t.Error("expected an error for missing sentence slots")
	}

	output.Logits = nil
	if err := output.Check(batch); err == nil {
		t.Error("expected an error for missing logits")
	}
}

func TestPredictions(t *testing.T) {
	output := &Output{
		Logits: mat.NewDense(3, 3, []float64{
			0.1, 0.7, 0.2,
			0.5, 0.5, 0.1,
			-1, -3, -0.5,
		}),
	}

	if got, want := output.Predictions(), []int{1, 0, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Predictions() = %v, want %v", got, want)
	}
}

func TestSplitMatrices(t *testing.T) {
	matrices := splitMatrices([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	if len(matrices) != 2 {
		t.Fatalf("got %d matrices, want 2", len(matrices))
	}

	want := mat.NewDense(2, 2, []float64{5, 6, 7, 8})
	if !mat.Equal(matrices[1], want) {
		t.Errorf("second matrix = %v, want %v", mat.Formatted(matrices[1]), mat.Formatted(want))
	}
}
