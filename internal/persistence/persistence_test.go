package persistence_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrej220/netexec/internal/persistence"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

const sampleJSON = "{\n  \"key\": \"value\"\n}"

type MockSerializer struct {
	Bytes []byte
	Err   error
}

func (s MockSerializer) Marshal(data any) ([]byte, error) {
	return s.Bytes, s.Err
}

type MockWriter struct {
	Data map[string][]byte
	Err  error
}

func (w *MockWriter) Write(filename string, data []byte) error {
	if w.Data == nil {
		w.Data = make(map[string][]byte)
	}
	w.Data[filename] = data
	return w.Err
}

func TestWriteJSONToFile(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		serializer  persistence.Serializer
		writer      *MockWriter
		expectedErr bool
	}{
		{
			name:       "valid input",
			filename:   "out/result.json",
			serializer: MockSerializer{Bytes: []byte(sampleJSON)},
			writer:     &MockWriter{},
		},
		{
			name:        "empty filename",
			filename:    "",
			serializer:  MockSerializer{Bytes: []byte(sampleJSON)},
			writer:      &MockWriter{},
			expectedErr: true,
		},
		{
			name:        "serializer error",
			filename:    "test.json",
			serializer:  MockSerializer{Err: fmt.Errorf("serialization failed")},
			writer:      &MockWriter{},
			expectedErr: true,
		},
		{
			name:        "writer error",
			filename:    "test.json",
			serializer:  MockSerializer{Bytes: []byte(sampleJSON)},
			writer:      &MockWriter{Err: fmt.Errorf("write failed")},
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := persistence.WriteJSONToFile(map[string]string{"key": "value"}, tt.filename, tt.serializer, tt.writer)
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, sampleJSON, string(tt.writer.Data[tt.filename]))
		})
	}
}

func TestJSONSerializerIndent(t *testing.T) {
	out, err := persistence.JSONSerializer{Indent: persistence.DefaultIndent}.Marshal(map[string]string{"key": "value"})
	require.NoError(t, err)
	assert.Equal(t, sampleJSON, string(out))
}

func TestFileWriter(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := persistence.FileWriter{Fs: fsys, Overwrite: true}

	require.NoError(t, w.Write("/results/nested/out.json", []byte("first")))
	require.NoError(t, w.Write("/results/nested/out.json", []byte("second")))

	got, err := afero.ReadFile(fsys, "/results/nested/out.json")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	noOverwrite := persistence.FileWriter{Fs: fsys}
	assert.ErrorIs(t, noOverwrite.Write("/results/nested/out.json", []byte("third")), os.ErrExist)
	assert.ErrorIs(t, w.Write("", nil), os.ErrInvalid)
}

func TestFileWriterReadOnlyFs(t *testing.T) {
	w := persistence.FileWriter{Fs: afero.NewReadOnlyFs(afero.NewMemMapFs()), Overwrite: true}
	assert.Error(t, w.Write("/out.json", []byte("x")))
}

func sampleResult() dm.ExecutionResult {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return dm.NewSuccess("Successfully executed 1 commands", "Command: show version\nIOS", "10.0.0.1", ts)
}

func TestSinkEmitWritesFileAndConsole(t *testing.T) {
	fsys := afero.NewMemMapFs()
	var console bytes.Buffer
	sink := persistence.NewSink(&console, fsys, "/out/result.json")

	require.NoError(t, sink.Emit(sampleResult()))

	file, err := afero.ReadFile(fsys, "/out/result.json")
	require.NoError(t, err)
	assert.Equal(t, string(file)+"\n", console.String())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(file, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "10.0.0.1", decoded["device_host"])
	assert.Equal(t, "2024-05-01T12:00:00Z", decoded["timestamp"])
	assert.NotContains(t, decoded, "Kind")
	assert.Contains(t, string(file), "\n  \"success\": true")
}

func TestSinkEmitConsoleOnly(t *testing.T) {
	fsys := afero.NewMemMapFs()
	var console bytes.Buffer
	sink := persistence.NewSink(&console, fsys, "")

	res := dm.NewFailure(dm.KindInputNotFound, "missing.json", "", time.Now())
	require.NoError(t, sink.Emit(res))

	assert.Contains(t, console.String(), "Configuration file not found: missing.json")
	assert.NotContains(t, console.String(), "device_host")
	entries, err := afero.ReadDir(fsys, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSinkEmitFileFailureSkipsConsole(t *testing.T) {
	var console bytes.Buffer
	sink := persistence.NewSink(&console, afero.NewReadOnlyFs(afero.NewMemMapFs()), "/out.json")

	assert.Error(t, sink.Emit(sampleResult()))
	assert.Empty(t, console.String())
}
