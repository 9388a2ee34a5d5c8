package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/danieldk/conllx"

	"github.com/Chunlinx/docstruct/cmd/common"
	"github.com/Chunlinx/docstruct/vocab"
)

var unknown = flag.String("unknown", "UNK", "word that unknown words are mapped to")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-unknown UNK] corpus.conll [vocab.txt]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(1)
	}

	corpusFile, err := os.Open(flag.Arg(0))
	common.ExitIfError("Cannot open corpus: ", err)
	defer corpusFile.Close()

	v := vocab.NewVocabulary()
	v.Add(*unknown)

	err = common.ProcessData(corpusFile, func(sentence conllx.Sentence) error {
		for _, token := range sentence {
			if form, ok := token.Form(); ok {
				v.Add(form)
			}
		}
		return nil
	})
	common.ExitIfError("Error processing corpus: ", err)

	output := common.FileOrStdout(flag.Args(), 1)
	defer output.Close()
	bufWriter := bufio.NewWriter(output)
	defer bufWriter.Flush()

	err = v.Write(bufWriter)
	common.ExitIfError("Could not write vocabulary: ", err)
}
