// Package persistence serialises execution results and delivers them to
// the console and, optionally, to a file.
package persistence

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	dm "github.com/andrej220/netexec/pkg/shared-models"
)

const DefaultIndent = "  "

type Serializer interface {
	Marshal(data any) ([]byte, error)
}

type Writer interface {
	Write(filename string, data []byte) error
}

type JSONSerializer struct {
	Prefix, Indent string
}

func (s JSONSerializer) Marshal(data any) ([]byte, error) {
	return json.MarshalIndent(data, s.Prefix, s.Indent)
}

// FileWriter writes through an afero filesystem, creating parent
// directories. An existing file is replaced only when Overwrite is set.
type FileWriter struct {
	Fs        afero.Fs
	Overwrite bool
}

func (w FileWriter) Write(filename string, data []byte) error {
	if filename == "" {
		return os.ErrInvalid
	}
	fsys := w.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if _, err := fsys.Stat(filename); !os.IsNotExist(err) && !w.Overwrite {
		return os.ErrExist
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(fsys, filename, data, 0o644)
}

// WriteJSONToFile serialises data and hands it to writer.
func WriteJSONToFile(data any, filename string, serializer Serializer, writer Writer) error {
	if filename == "" {
		return os.ErrInvalid
	}
	bytes, err := serializer.Marshal(data)
	if err != nil {
		return err
	}
	if err := writer.Write(filename, bytes); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// Sink emits one result per run.
type Sink struct {
	Console    io.Writer
	OutputPath string
	Serializer Serializer
	Writer     Writer
}

// NewSink returns a sink printing to console and, when outputPath is not
// empty, writing the same document to outputPath on fsys.
func NewSink(console io.Writer, fsys afero.Fs, outputPath string) *Sink {
	return &Sink{
		Console:    console,
		OutputPath: outputPath,
		Serializer: JSONSerializer{Indent: DefaultIndent},
		Writer:     FileWriter{Fs: fsys, Overwrite: true},
	}
}

// Emit writes the file first, then the console. A file failure is
// returned without printing so the caller can report it instead.
func (s *Sink) Emit(res dm.ExecutionResult) error {
	if s.OutputPath != "" {
		if err := WriteJSONToFile(res, s.OutputPath, s.Serializer, s.Writer); err != nil {
			return err
		}
	}
	return s.Print(res)
}

// Print writes res to the console only.
func (s *Sink) Print(res dm.ExecutionResult) error {
	bytes, err := s.Serializer.Marshal(res)
	if err != nil {
		return err
	}
	bytes = append(bytes, '\n')
	_, err = s.Console.Write(bytes)
	return err
}
