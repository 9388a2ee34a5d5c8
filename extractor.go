package docstruct

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/Chunlinx/docstruct/arborescence"
	"github.com/Chunlinx/docstruct/vocab"
)

// Stats summarizes an extraction run.
type Stats struct {
	Batches     int
	Skipped     int
	Documents   int
	FailedUnits int

	// Correct counts the documents for which the model predicted the gold
	// label.
	Correct int
}

// Accuracy returns the classification accuracy over the processed
// documents.
func (s Stats) Accuracy() float64 {
	if s.Documents == 0 {
		return 0
	}

	return float64(s.Correct) / float64(s.Documents)
}

// An Extractor runs a model over batches of documents and writes the
// latent trees induced by its attention.
type Extractor struct {
	model   Model
	batcher Batcher
	vocab   *vocab.Vocabulary
	writer  Writer
	logger  *zap.Logger
	workers int

	// Progress is called after every processed batch.
	Progress func()
}

type Option func(*Extractor)

// WithBatcher sets the batcher, the default is DefaultBatcher.
func WithBatcher(b Batcher) Option {
	return func(e *Extractor) {
		e.batcher = b
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithWorkers sets the number of documents that are decoded concurrently.
// Documents are always written in input order.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		e.workers = max(1, n)
	}
}

func NewExtractor(model Model, v *vocab.Vocabulary, writer Writer, opts ...Option) *Extractor {
	e := &Extractor{
		model:   model,
		batcher: DefaultBatcher,
		vocab:   v,
		writer:  writer,
		logger:  zap.NewNop(),
		workers: 1,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run extracts the structures of all documents. Unusable batches are
// skipped. Errors of the model or the writer abort the run, a unit for
// which no tree can be found is marked as failed.
func (e *Extractor) Run(batches [][]Document) (Stats, error) {
	var stats Stats
	counter := 0

	for idx, docs := range batches {
		batch, ok := e.batcher.Pad(docs)
		if !ok {
			e.logger.Debug("Skipping batch", zap.Int("batch", idx), zap.Int("documents", len(docs)))
			stats.Skipped++
			e.progress()
			continue
		}
		batch.Index = stats.Batches

		output, err := e.model.Forward(batch)
		if err != nil {
			return stats, fmt.Errorf("forward pass of batch %d: %w", idx, err)
		}
		if err := output.Check(batch); err != nil {
			return stats, fmt.Errorf("output of batch %d: %w", idx, err)
		}

		structures, err := e.decodeBatch(docs, batch, output)
		if err != nil {
			return stats, err
		}

		predictions := output.Predictions()
		for i, doc := range docs {
			if predictions[i] == doc.Label {
				stats.Correct++
			}

			structures[i].Counter = counter
			counter++

			stats.FailedUnits += failedUnits(structures[i])

			if err := e.writer.Write(structures[i]); err != nil {
				return stats, fmt.Errorf("cannot write document %d: %w", structures[i].Counter, err)
			}
		}

		stats.Batches++
		stats.Documents += len(docs)
		e.progress()
	}

	return stats, nil
}

func (e *Extractor) progress() {
	if e.Progress != nil {
		e.Progress()
	}
}

func (e *Extractor) decodeBatch(docs []Document, batch *PaddedBatch, output *Output) ([]DocumentStructure, error) {
	structures := make([]DocumentStructure, len(docs))

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range docs {
		i := i
		g.Go(func() error {
			structure, err := e.decodeDocument(docs[i], i, batch, output)
			structures[i] = structure
			return err
		})
	}

	return structures, g.Wait()
}

func (e *Extractor) decodeDocument(doc Document, i int, batch *PaddedBatch, output *Output) (DocumentStructure, error) {
	var structure DocumentStructure

	sentMask := batch.SentMask[i*batch.MaxDocLen : (i+1)*batch.MaxDocLen]
	importance, normalized := SentenceImportance(output.DocAttention[i], sentMask)
	if !normalized {
		e.logger.Warn("Sentence importance sums to zero",
			zap.Int("batch", batch.Index), zap.Int("document", i))
	}
	structure.Importance = importance[:len(doc.Sentences)]

	for j, sent := range doc.Sentences {
		words, err := e.words(sent)
		if err != nil {
			return structure, err
		}

		att := SliceSquare(output.TokenAttention[batch.Slot(i, j)], 0, len(sent))
		tree := e.decodeUnit(att)
		if tree.Err != nil {
			e.logger.Error("Cannot extract sentence tree",
				zap.Int("batch", batch.Index), zap.Int("document", i),
				zap.Int("sentence", j), zap.Error(tree.Err))
		}

		structure.Sentences = append(structure.Sentences, SentenceStructure{
			Words: words,
			Tree:  tree,
		})
	}

	att := SliceSquare(output.DocAttention[i], 0, len(doc.Sentences))
	structure.Tree = e.decodeUnit(att)
	if structure.Tree.Err != nil {
		e.logger.Error("Cannot extract document tree",
			zap.Int("batch", batch.Index), zap.Int("document", i), zap.Error(structure.Tree.Err))
	}

	return structure, nil
}

func (e *Extractor) decodeUnit(att mat.Matrix) UnitTree {
	tree, err := arborescence.Solve(RootedWeights(att))
	if err != nil {
		return UnitTree{Err: err}
	}

	if err := arborescence.Validate(tree.Heads); err != nil {
		return UnitTree{Err: fmt.Errorf("decoder returned an invalid tree: %w", err)}
	}

	return UnitTree{Arborescence: tree}
}

func (e *Extractor) words(sent Sentence) ([]string, error) {
	words := make([]string, len(sent))
	for k, token := range sent {
		word, ok := e.vocab.Word(int(token))
		if !ok {
			return nil, fmt.Errorf("token index %d is not in the vocabulary", token)
		}
		words[k] = word
	}

	return words, nil
}

func failedUnits(doc DocumentStructure) int {
	failed := 0
	for _, sent := range doc.Sentences {
		if sent.Tree.Err != nil {
			failed++
		}
	}

	if doc.Tree.Err != nil {
		failed++
	}

	return failed
}

// IsInvalidInput reports whether a unit failed because its attention
// matrix could not be decoded.
func IsInvalidInput(tree UnitTree) bool {
	return errors.Is(tree.Err, arborescence.ErrInvalidInput)
}
