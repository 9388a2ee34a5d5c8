package docstruct

// A Token is a vocabulary index. Index 0 is padding.
type Token int32

type Sentence []Token

// A Document is a sequence of sentences with its gold class label.
type Document struct {
	Sentences []Sentence
	Label     int
}

// A PaddedBatch holds the rectangular tensors of a batch of documents.
// All tensors are stored row-major.
type PaddedBatch struct {
	// Index numbers the usable batches of a run, starting at 0.
	Index int

	BatchSize  int
	MaxDocLen  int
	MaxSentLen int

	// [BatchSize, MaxDocLen, MaxSentLen]
	TokenIdxs []int32
	TokenMask []float32

	// [BatchSize, MaxDocLen]
	SentLens []int32
	SentMask []float32

	// [BatchSize]
	DocLens    []int32
	GoldLabels []int32

	// [MaxDocLen, MaxDocLen], ParserMask1 is zero in column 0, ParserMask2
	// is zero in row 0.
	ParserMask1 []float32
	ParserMask2 []float32
}

// Slot returns the sentence slot of sentence sent of document doc.
func (b *PaddedBatch) Slot(doc, sent int) int {
	return doc*b.MaxDocLen + sent
}

// Tokens returns the padded token indices of a sentence slot.
func (b *PaddedBatch) Tokens(doc, sent int) []int32 {
	offset := b.Slot(doc, sent) * b.MaxSentLen
	return b.TokenIdxs[offset : offset+b.MaxSentLen]
}

// A Batcher pads batches of documents. Batches whose documents or
// sentences are longer than the maximum lengths are rejected.
type Batcher struct {
	MaxDocLen  int
	MaxSentLen int
}

var DefaultBatcher = Batcher{
	MaxDocLen:  30,
	MaxSentLen: 30,
}

// Pad converts documents to padded tensors. It returns false when the
// batch is not usable: it is empty, all documents have a single sentence,
// all sentences have a single token, or the shape exceeds the maximum
// lengths.
func (b Batcher) Pad(docs []Document) (*PaddedBatch, bool) {
	if len(docs) == 0 {
		return nil, false
	}

	maxDocLen, maxSentLen := 1, 1
	for _, doc := range docs {
		maxDocLen = max(maxDocLen, len(doc.Sentences))
		for _, sent := range doc.Sentences {
			maxSentLen = max(maxSentLen, len(sent))
		}
	}

	if maxDocLen == 1 || maxSentLen == 1 ||
		maxDocLen > b.MaxDocLen || maxSentLen > b.MaxSentLen {
		return nil, false
	}

	batchSize := len(docs)
	batch := &PaddedBatch{
		BatchSize:   batchSize,
		MaxDocLen:   maxDocLen,
		MaxSentLen:  maxSentLen,
		TokenIdxs:   make([]int32, batchSize*maxDocLen*maxSentLen),
		TokenMask:   make([]float32, batchSize*maxDocLen*maxSentLen),
		SentLens:    make([]int32, batchSize*maxDocLen),
		SentMask:    make([]float32, batchSize*maxDocLen),
		DocLens:     make([]int32, batchSize),
		GoldLabels:  make([]int32, batchSize),
		ParserMask1: make([]float32, maxDocLen*maxDocLen),
		ParserMask2: make([]float32, maxDocLen*maxDocLen),
	}

	for i := range batch.SentLens {
		batch.SentLens[i] = 1
	}

	for i, doc := range docs {
		batch.DocLens[i] = int32(max(1, len(doc.Sentences)))
		batch.GoldLabels[i] = int32(doc.Label)

		for j, sent := range doc.Sentences {
			slot := batch.Slot(i, j)
			offset := slot * maxSentLen
			for k, token := range sent {
				batch.TokenIdxs[offset+k] = int32(token)
				batch.TokenMask[offset+k] = 1
			}

			batch.SentLens[slot] = int32(max(1, len(sent)))
			batch.SentMask[slot] = 1
		}
	}

	for r := 0; r < maxDocLen; r++ {
		for c := 0; c < maxDocLen; c++ {
			if c != 0 {
				batch.ParserMask1[r*maxDocLen+c] = 1
			}
			if r != 0 {
				batch.ParserMask2[r*maxDocLen+c] = 1
			}
		}
	}

	return batch, true
}

// Batches splits documents in consecutive batches of the given size. The
// last batch may be smaller.
func Batches(docs []Document, size int) [][]Document {
	if size < 1 {
		size = 1
	}

	batches := make([][]Document, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		batches = append(batches, docs[start:min(start+size, len(docs))])
	}

	return batches
}
