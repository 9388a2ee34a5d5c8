package docstruct

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var _ Writer = new(TextDirWriter)

// TextDirWriter writes every document to its own text file in a
// directory. The file of document n is named n.txt.
type TextDirWriter struct {
	dir string
}

// NewTextDirWriter creates the output directory when it does not exist.
func NewTextDirWriter(dir string) (*TextDirWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}

	return &TextDirWriter{dir: dir}, nil
}

func (tw *TextDirWriter) Write(doc DocumentStructure) error {
	f, err := os.Create(filepath.Join(tw.dir, fmt.Sprintf("%d.txt", doc.Counter)))
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	if err := WriteText(bw, doc); err != nil {
		f.Close()
		return err
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func (tw *TextDirWriter) Close() error {
	return nil
}

// WriteText writes a document structure in the plain text format: a
// header, the words and tree of every sentence and after a blank line
// the tree of the document.
func WriteText(w io.Writer, doc DocumentStructure) error {
	if _, err := fmt.Fprintf(w, "Doc: %d\n", doc.Counter+1); err != nil {
		return err
	}

	for _, sent := range doc.Sentences {
		if _, err := fmt.Fprintln(w, strings.Join(sent.Words, " ")); err != nil {
			return err
		}

		if _, err := fmt.Fprintln(w, formatTree(sent.Tree)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n%s\n", formatTree(doc.Tree))
	return err
}

func formatTree(tree UnitTree) string {
	if tree.Err != nil {
		return "FAILED " + tree.Err.Error()
	}

	fields := make([]string, 0, len(tree.Heads)+1)
	for _, head := range tree.Heads {
		fields = append(fields, strconv.Itoa(head))
	}
	fields = append(fields, strconv.FormatFloat(tree.Score, 'g', -1, 64))

	return strings.Join(fields, " ")
}
