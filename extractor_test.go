package docstruct

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Chunlinx/docstruct/vocab"
)

// fakeModel produces deterministic attention matrices. When nanSlot is
// non-negative, the token attention of that slot contains NaN.
type fakeModel struct {
	classes int
	nanSlot int
	err     error
	calls   int
}

func (m *fakeModel) Forward(batch *PaddedBatch) (*Output, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	output := &Output{
		Logits: mat.NewDense(batch.BatchSize, m.classes, nil),
	}

	for i := 0; i < batch.BatchSize; i++ {
		// Predict the first class for every document.
		output.Logits.Set(i, 0, 1)
	}

	n := batch.MaxSentLen
	for slot := 0; slot < batch.BatchSize*batch.MaxDocLen; slot++ {
		att := mat.NewDense(n, n, nil)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				att.Set(r, c, float64((r*7+c*3+slot)%5)/4)
			}
		}
		if slot == m.nanSlot {
			att.Set(0, 0, math.NaN())
		}
		output.TokenAttention = append(output.TokenAttention, att)
	}

	d := batch.MaxDocLen
	for i := 0; i < batch.BatchSize; i++ {
		att := mat.NewDense(d, d+1, nil)
		for r := 0; r < d; r++ {
			for c := 0; c < d+1; c++ {
				att.Set(r, c, float64((r+2*c+i)%3)/2)
			}
		}
		output.DocAttention = append(output.DocAttention, att)
	}

	return output, nil
}

// fixedModel returns the same hand-chosen output for every batch.
type fixedModel struct {
	output *Output
}

func (m fixedModel) Forward(batch *PaddedBatch) (*Output, error) {
	return m.output, nil
}

type memoryWriter struct {
	docs   []DocumentStructure
	closed bool
}

func (w *memoryWriter) Write(doc DocumentStructure) error {
	w.docs = append(w.docs, doc)
	return nil
}

func (w *memoryWriter) Close() error {
	w.closed = true
	return nil
}

func testVocabulary(t *testing.T) *vocab.Vocabulary {
	v := vocab.NewVocabulary()
	if err := v.Read(strings.NewReader("the\nfood\nwas\ngreat\nservice\nslow\nok\n")); err != nil {
		t.Fatalf("Read: %v", err)
	}
	return v
}

func TestExtractEndToEnd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "structures")
	tw, err := NewTextDirWriter(dir)
	if err != nil {
		t.Fatalf("NewTextDirWriter: %v", err)
	}

	docs := []Document{
		{Sentences: []Sentence{{2, 4}, {5, 3, 6}}, Label: 0},
	}

	e := NewExtractor(&fakeModel{classes: 2, nanSlot: -1}, testVocabulary(t), tw)
	stats, err := e.Run(Batches(docs, 8))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Documents != 1 || stats.Batches != 1 || stats.FailedUnits != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Accuracy() != 1 {
		t.Errorf("accuracy = %g, want 1", stats.Accuracy())
	}

	data, err := os.ReadFile(filepath.Join(dir, "0.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines:\n%s", len(lines), data)
	}
	if lines[0] != "Doc: 1" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "food great" || lines[3] != "service was slow" {
		t.Errorf("sentences = %q, %q", lines[1], lines[3])
	}
	if lines[5] != "" {
		t.Errorf("expected a blank line before the document tree, got %q", lines[5])
	}

	for idx, want := range map[int]int{2: 2, 4: 3, 6: 2} {
		// Heads followed by the score.
		if got := len(strings.Fields(lines[idx])) - 1; got != want {
			t.Errorf("line %d has %d heads, want %d: %q", idx, got, want, lines[idx])
		}
	}
}

func TestExtractTreesAreValid(t *testing.T) {
	docs := []Document{
		{Sentences: []Sentence{{1, 2, 3}, {4, 5}, {6, 7, 1, 2}}, Label: 1},
		{Sentences: []Sentence{{3, 3}, {}}, Label: 0},
	}

	w := &memoryWriter{}
	e := NewExtractor(&fakeModel{classes: 2, nanSlot: -1}, testVocabulary(t), w)
	stats, err := e.Run([][]Document{docs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Correct != 1 || stats.Documents != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if len(w.docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(w.docs))
	}

	for _, doc := range w.docs {
		for j, sent := range doc.Sentences {
			if sent.Tree.Err != nil {
				t.Fatalf("sentence %d: %v", j, sent.Tree.Err)
			}
			if len(sent.Tree.Heads) != len(sent.Words) {
				t.Errorf("sentence %d: %d heads for %d words", j, len(sent.Tree.Heads), len(sent.Words))
			}
		}
		if len(doc.Tree.Heads) != len(doc.Sentences) {
			t.Errorf("document tree has %d heads for %d sentences", len(doc.Tree.Heads), len(doc.Sentences))
		}
		if len(doc.Importance) != len(doc.Sentences) {
			t.Errorf("%d importances for %d sentences", len(doc.Importance), len(doc.Sentences))
		}
	}

	if w.docs[1].Sentences[1].Tree.Score != 0 {
		t.Errorf("empty sentence has score %g", w.docs[1].Sentences[1].Tree.Score)
	}
}

func TestExtractExactStructures(t *testing.T) {
	// Sentence lengths 2 and 3 give max_doc_l = 2 and max_sent_l = 3.
	docs := []Document{
		{Sentences: []Sentence{{1, 2}, {3, 4, 5}}, Label: 1},
	}

	// Slot 0: uniform weights, the padding token row would win if it were
	// not sliced off.
	slot0 := mat.NewDense(3, 3, []float64{
		0.1, 0.1, 0.1,
		0.1, 0.1, 0.1,
		50, 50, 50,
	})
	// Slot 1: token 1 dominates as the parent of token 3.
	slot1 := mat.NewDense(3, 3, []float64{
		0.1, 0.1, 5,
		0.1, 0.1, 0.1,
		0.1, 0.1, 0.1,
	})

	model := fixedModel{output: &Output{
		Logits:         mat.NewDense(1, 2, []float64{0.2, 0.8}),
		TokenAttention: []*mat.Dense{slot0, slot1},
		DocAttention: []*mat.Dense{mat.NewDense(2, 3, []float64{
			9, 1, 2,
			8, 3, 4,
		})},
	}}

	w := &memoryWriter{}
	stats, err := NewExtractor(model, testVocabulary(t), w).Run([][]Document{docs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Correct != 1 || stats.FailedUnits != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(w.docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(w.docs))
	}
	doc := w.docs[0]

	sentences := []struct {
		heads []int
		score float64
	}{
		{[]int{0, 0}, 2},
		{[]int{0, 0, 1}, 7},
	}
	for j, want := range sentences {
		tree := doc.Sentences[j].Tree
		if tree.Err != nil {
			t.Fatalf("sentence %d: %v", j, tree.Err)
		}
		if !reflect.DeepEqual(tree.Heads, want.heads) || tree.Score != want.score {
			t.Errorf("sentence %d: heads %v score %g, want %v %g", j, tree.Heads, tree.Score, want.heads, want.score)
		}
	}

	// The document tree is decoded from the block [[9 1] [8 3]]: sentence 1
	// attaches to sentence 2 (weight 8), sentence 2 to the root (weight 1).
	if doc.Tree.Err != nil {
		t.Fatalf("document tree: %v", doc.Tree.Err)
	}
	if want := []int{2, 0}; !reflect.DeepEqual(doc.Tree.Heads, want) || doc.Tree.Score != 9 {
		t.Errorf("document tree: heads %v score %g, want %v 9", doc.Tree.Heads, doc.Tree.Score, want)
	}

	// Importance skips the root column: column sums 4 and 6.
	for j, want := range []float64{0.4, 0.6} {
		if math.Abs(doc.Importance[j]-want) > 1e-12 {
			t.Errorf("importance of sentence %d = %g, want %g", j, doc.Importance[j], want)
		}
	}
}

func TestExtractSkipsRejectedBatches(t *testing.T) {
	model := &fakeModel{classes: 2, nanSlot: -1}
	w := &memoryWriter{}

	batches := [][]Document{
		{{Sentences: []Sentence{{1, 2, 3}}}},
		{{Sentences: []Sentence{{1, 2}, {3, 4}}}},
		{{Sentences: []Sentence{make(Sentence, 31), {3, 4}}}},
	}

	stats, err := NewExtractor(model, testVocabulary(t), w).Run(batches)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Skipped != 2 || stats.Batches != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if model.calls != 1 {
		t.Errorf("model was called %d times, want 1", model.calls)
	}
	if len(w.docs) != 1 || w.docs[0].Counter != 0 {
		t.Errorf("unexpected output: %+v", w.docs)
	}
}

func TestExtractFailedUnitContinues(t *testing.T) {
	docs := []Document{
		{Sentences: []Sentence{{1, 2}, {3, 4}}},
		{Sentences: []Sentence{{5, 6}, {7, 1}}},
	}

	w := &memoryWriter{}
	e := NewExtractor(&fakeModel{classes: 2, nanSlot: 0}, testVocabulary(t), w)
	stats, err := e.Run([][]Document{docs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.FailedUnits != 1 {
		t.Errorf("FailedUnits = %d, want 1", stats.FailedUnits)
	}
	if len(w.docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(w.docs))
	}
	if !IsInvalidInput(w.docs[0].Sentences[0].Tree) {
		t.Errorf("first sentence error = %v", w.docs[0].Sentences[0].Tree.Err)
	}
	if w.docs[0].Sentences[1].Tree.Err != nil || w.docs[0].Tree.Err != nil {
		t.Error("other units of the document should be decoded")
	}
}

func TestExtractModelError(t *testing.T) {
	failure := errors.New("out of memory")
	e := NewExtractor(&fakeModel{err: failure}, testVocabulary(t), &memoryWriter{})

	_, err := e.Run([][]Document{{{Sentences: []Sentence{{1, 2}, {3, 4}}}}})
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want %v", err, failure)
	}
}

func TestExtractUnknownToken(t *testing.T) {
	e := NewExtractor(&fakeModel{classes: 2, nanSlot: -1}, testVocabulary(t), &memoryWriter{})

	if _, err := e.Run([][]Document{{{Sentences: []Sentence{{1, 99}, {3, 4}}}}}); err == nil {
		t.Error("expected an error for a token outside the vocabulary")
	}
}

func TestExtractWorkersKeepOrder(t *testing.T) {
	var docs []Document
	for i := 0; i < 13; i++ {
		doc := Document{Label: i % 2}
		for j := 0; j < 2+i%3; j++ {
			sent := make(Sentence, 2+(i+j)%4)
			for k := range sent {
				sent[k] = Token(1 + (i+j+k)%7)
			}
			doc.Sentences = append(doc.Sentences, sent)
		}
		docs = append(docs, doc)
	}

	run := func(workers int) []DocumentStructure {
		w := &memoryWriter{}
		e := NewExtractor(&fakeModel{classes: 2, nanSlot: -1}, testVocabulary(t), w, WithWorkers(workers))
		if _, err := e.Run(Batches(docs, 4)); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return w.docs
	}

	sequential, parallel := run(1), run(4)
	if !reflect.DeepEqual(sequential, parallel) {
		t.Error("parallel extraction differs from sequential extraction")
	}
	for i, doc := range parallel {
		if doc.Counter != i {
			t.Fatalf("document %d has counter %d", i, doc.Counter)
		}
	}
}
