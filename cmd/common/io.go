package common

import (
	"bufio"
	"errors"
	"io"
	"log"
	"os"

	"github.com/danieldk/conllx"
	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/Chunlinx/docstruct"
	"github.com/Chunlinx/docstruct/vocab"
)

// NewFileProgress returns a progress bar that counts the bytes of f.
func NewFileProgress(f *os.File) (*pb.ProgressBar, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	bar := pb.New64(fi.Size())
	bar.SetUnits(pb.U_BYTES)

	return bar, nil
}

func ExitIfError(prefix string, err error) {
	if err != nil {
		log.Fatalf("%s%v", prefix, err)
	}
}

// newCoNLLXReader starts a progress bar and returns a reader over f that
// advances it. The caller finishes the bar.
func newCoNLLXReader(f *os.File) (*conllx.Reader, *pb.ProgressBar, error) {
	bar, err := NewFileProgress(f)
	if err != nil {
		return nil, nil, err
	}
	bar.Start()

	return conllx.NewReader(bufio.NewReader(bar.NewProxyReader(f))), bar, nil
}

type DataFun func(conllx.Sentence) error

// ProcessData calls fun for every sentence of a CoNLL-X file, showing
// the progress.
func ProcessData(f *os.File, fun DataFun) error {
	r, bar, err := newCoNLLXReader(f)
	if err != nil {
		return err
	}
	defer bar.Finish()

	for {
		s, err := r.ReadSentence()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := fun(s); err != nil {
			return err
		}
	}
}

func MustReadCorpus(f *os.File, v *vocab.Vocabulary, unknown string) []docstruct.Document {
	r, bar, err := newCoNLLXReader(f)
	ExitIfError("Cannot stat corpus: ", err)
	defer bar.Finish()

	cr, err := docstruct.NewCorpusReader(r, v, unknown)
	ExitIfError("Cannot read corpus: ", err)

	docs, err := cr.ReadAll()
	ExitIfError("Cannot read corpus: ", err)

	return docs
}

func MustReadVocabulary(filename string) *vocab.Vocabulary {
	f, err := os.Open(filename)
	ExitIfError("Could not open vocabulary file: ", err)
	defer f.Close()

	v := vocab.NewVocabulary()
	err = v.Read(f)
	ExitIfError("Could not read vocabulary file: ", err)

	return v
}

// MustCreateLogger returns a production logger, or a development logger
// when verbose is set.
func MustCreateLogger(verbose bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	ExitIfError("Cannot create logger: ", err)

	return logger
}
