// Copyright 2026 The docstruct Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/Chunlinx/docstruct"
)

type DocStructConfig struct {
	Data       Data
	Model      Model
	TensorFlow TensorFlow
	Output     Output
}

type Data struct {
	BatchSize  int `toml:"batch_size"`
	MaxDocLen  int `toml:"max_doc_len"`
	MaxSentLen int `toml:"max_sent_len"`
	Vocab      string
	Unknown    string
}

// Model selects the model backend: "tensorflow" runs a graph, "hdf5"
// reads the precomputed output of an external model run.
type Model struct {
	Backend   string
	Classes   int
	Attention string
}

type TensorFlow struct {
	GPUMemoryFraction float64 `toml:"gpu_mem_frac"`
	Graph             string
	Ops               docstruct.TensorFlowOps
}

type Output struct {
	Directory string
	CoNLLX    string `toml:"conllx"`
	HDF5      string `toml:"hdf5"`
	Workers   int
}

func defaultConfiguration() *DocStructConfig {
	return &DocStructConfig{
		Data: Data{
			BatchSize:  8,
			MaxDocLen:  docstruct.DefaultBatcher.MaxDocLen,
			MaxSentLen: docstruct.DefaultBatcher.MaxSentLen,
			Vocab:      "vocab.txt",
			Unknown:    "UNK",
		},
		Model: Model{
			Backend: "tensorflow",
			Classes: 5,
		},
		TensorFlow: TensorFlow{
			GPUMemoryFraction: 0.3,
			Graph:             "graph.binaryproto",
			Ops: docstruct.TensorFlowOps{
				TokenIdxs:      "token_idxs",
				TokenMask:      "mask_tokens",
				SentMask:       "mask_sents",
				SentLens:       "sent_l",
				DocLens:        "doc_l",
				ParserMask1:    "mask_parser_1",
				ParserMask2:    "mask_parser_2",
				Logits:         "output",
				TokenAttention: "sent_attention_matrix",
				DocAttention:   "doc_attention_matrix",
			},
		},
		Output: Output{
			Directory: "structures",
			Workers:   1,
		},
	}
}

func ParseConfig(reader io.Reader) (*DocStructConfig, error) {
	config := defaultConfiguration()
	_, err := toml.NewDecoder(reader).Decode(config)
	return config, err
}

func MustReadConfig(filename string) *DocStructConfig {
	f, err := os.Open(filename)
	ExitIfError("Error opening configuration file: ", err)
	defer f.Close()
	config, err := ParseConfig(f)
	ExitIfError("Error parsing configuration file: ", err)

	resolvePaths(filepath.Dir(filename),
		&config.Data.Vocab,
		&config.Model.Attention,
		&config.TensorFlow.Graph,
		&config.Output.Directory,
		&config.Output.CoNLLX,
		&config.Output.HDF5)

	return config
}

// Batcher returns the batcher with the configured length limits.
func (c *DocStructConfig) Batcher() docstruct.Batcher {
	return docstruct.Batcher{
		MaxDocLen:  c.Data.MaxDocLen,
		MaxSentLen: c.Data.MaxSentLen,
	}
}

// resolvePaths rewrites relative paths to be relative to dir. Empty
// paths mean that a file is not used and stay empty.
func resolvePaths(dir string, paths ...*string) {
	for _, path := range paths {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(dir, *path)
		}
	}
}
