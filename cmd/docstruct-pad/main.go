package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sbinet/go-hdf5"

	"github.com/Chunlinx/docstruct"
	"github.com/Chunlinx/docstruct/cmd/common"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s config.toml corpus.conll batches.h5\n", os.Args[0])
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(1)
	}

	conf := common.MustReadConfig(flag.Arg(0))
	vocabulary := common.MustReadVocabulary(conf.Data.Vocab)

	corpusFile, err := os.Open(flag.Arg(1))
	common.ExitIfError("Cannot open corpus: ", err)
	defer corpusFile.Close()
	docs := common.MustReadCorpus(corpusFile, vocabulary, conf.Data.Unknown)

	outputFile, err := hdf5.CreateFile(flag.Arg(2), hdf5.F_ACC_TRUNC)
	common.ExitIfError("Error creating file: ", err)
	defer outputFile.Close()

	writer := docstruct.NewBatchWriter(outputFile)
	batcher := conf.Batcher()

	// Usable batches are numbered like in docstruct-extract, so that the
	// model output can be read back with the hdf5 backend.
	written, skipped := 0, 0
	for _, batch := range docstruct.Batches(docs, conf.Data.BatchSize) {
		padded, ok := batcher.Pad(batch)
		if !ok {
			skipped++
			continue
		}

		padded.Index = written
		err := writer.Write(padded)
		common.ExitIfError("Error writing batch: ", err)
		written++
	}

	err = writer.Close()
	common.ExitIfError("Error flushing batches: ", err)

	log.Printf("Wrote %d batches, skipped %d", written, skipped)
}
