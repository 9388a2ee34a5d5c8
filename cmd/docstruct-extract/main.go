package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/danieldk/tensorflow"
	tfconfig "github.com/danieldk/tensorflow/config"
	"github.com/sbinet/go-hdf5"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/Chunlinx/docstruct"
	"github.com/Chunlinx/docstruct/cmd/common"
)

var verbose = flag.Bool("v", false, "log every skipped batch and failed tree")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-v] config.toml [corpus.conll] [outdir]\n", os.Args[0])
	flag.PrintDefaults()
}

// openSession starts a TensorFlow session with the frozen graph of the
// configuration.
func openSession(config *common.DocStructConfig) (*tensorflow.Session, error) {
	graph, err := os.ReadFile(config.TensorFlow.Graph)
	if err != nil {
		return nil, fmt.Errorf("cannot read graph: %w", err)
	}

	opts := tensorflow.NewSessionOptions()
	defer opts.Close()
	opts.SetConfig(tfconfig.ConfigProto{
		GpuOptions: &tfconfig.GPUOptions{
			PerProcessGpuMemoryFraction: config.TensorFlow.GPUMemoryFraction,
		},
	})

	session, err := tensorflow.NewSession(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open session: %w", err)
	}

	if err := session.ExtendGraph(graph); err != nil {
		session.Close()
		return nil, fmt.Errorf("cannot load graph %s: %w", config.TensorFlow.Graph, err)
	}

	return session, nil
}

// mustOpenModel returns the configured model and a function that
// releases its resources.
func mustOpenModel(config *common.DocStructConfig) (docstruct.Model, func()) {
	switch config.Model.Backend {
	case "tensorflow":
		session, err := openSession(config)
		common.ExitIfError("TensorFlow model: ", err)
		model := docstruct.NewTensorFlowModel(session, config.TensorFlow.Ops, config.Model.Classes)
		return model, model.Close
	case "hdf5":
		f, err := hdf5.OpenFile(config.Model.Attention, hdf5.F_ACC_RDONLY)
		common.ExitIfError("Could not open attention file: ", err)
		return docstruct.NewHDF5Model(f), func() { f.Close() }
	default:
		log.Fatalf("Unknown model backend: %s", config.Model.Backend)
		return nil, nil
	}
}

func mustCreateWriter(config *common.DocStructConfig, outDir string) (docstruct.Writer, func()) {
	var closers []func()

	textWriter, err := docstruct.NewTextDirWriter(outDir)
	common.ExitIfError("Cannot create output directory: ", err)
	writers := docstruct.MultiWriter{textWriter}

	if config.Output.CoNLLX != "" {
		f, err := os.Create(config.Output.CoNLLX)
		common.ExitIfError("Cannot create CoNLL-X output: ", err)
		closers = append(closers, func() { f.Close() })
		writers = append(writers, docstruct.NewCoNLLXWriter(bufio.NewWriter(f)))
	}

	if config.Output.HDF5 != "" {
		f, err := hdf5.CreateFile(config.Output.HDF5, hdf5.F_ACC_TRUNC)
		common.ExitIfError("Cannot create HDF5 output: ", err)
		closers = append(closers, func() { f.Close() })
		writers = append(writers, docstruct.NewHDF5Writer(f))
	}

	return writers, func() {
		for _, closer := range closers {
			closer()
		}
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 || flag.NArg() > 3 {
		flag.Usage()
		os.Exit(1)
	}

	conf := common.MustReadConfig(flag.Arg(0))
	logger := common.MustCreateLogger(*verbose)
	defer logger.Sync()

	vocabulary := common.MustReadVocabulary(conf.Data.Vocab)

	corpusFile := common.FileOrStdin(flag.Args(), 1)
	defer corpusFile.Close()
	log.Println("Reading corpus...")
	docs := common.MustReadCorpus(corpusFile, vocabulary, conf.Data.Unknown)

	model, closeModel := mustOpenModel(conf)
	defer closeModel()

	outDir := common.ArgOr(flag.Args(), 2, conf.Output.Directory)
	writer, closeFiles := mustCreateWriter(conf, outDir)
	defer closeFiles()

	batches := docstruct.Batches(docs, conf.Data.BatchSize)

	extractor := docstruct.NewExtractor(model, vocabulary, writer,
		docstruct.WithBatcher(conf.Batcher()),
		docstruct.WithLogger(logger),
		docstruct.WithWorkers(conf.Output.Workers))

	log.Printf("Extracting structures of %d documents to %s...", len(docs), outDir)
	bar := pb.StartNew(len(batches))
	extractor.Progress = func() { bar.Increment() }
	stats, err := extractor.Run(batches)
	bar.Finish()
	common.ExitIfError("Error extracting structures: ", err)

	err = writer.Close()
	common.ExitIfError("Error closing output: ", err)

	log.Printf("Skipped %d of %d batches, %d trees could not be extracted",
		stats.Skipped, len(batches), stats.FailedUnits)
	log.Printf("Test ACC: %d/%d = %.4f", stats.Correct, stats.Documents, stats.Accuracy())
}
