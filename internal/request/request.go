// Package request loads execution requests from JSON documents.
package request

import (
	"encoding/json"
	"errors"
	"io/fs"

	"github.com/spf13/afero"

	dm "github.com/andrej220/netexec/pkg/shared-models"
	"github.com/andrej220/netexec/pkg/validation"
)

// Load reads and validates the request stored at path. Errors are tagged
// with InputNotFound, InputMalformed or ValidationFailed.
func Load(fsys afero.Fs, path string) (*dm.ExecutionRequest, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, dm.NewError(dm.KindInputNotFound, path, nil)
		}
		return nil, dm.NewError(dm.KindUnexpected, "", err)
	}
	return Parse(data)
}

// Parse decodes and validates a request document.
func Parse(data []byte) (*dm.ExecutionRequest, error) {
	var req dm.ExecutionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, dm.NewError(dm.KindInputMalformed, "", err)
	}
	if req.Commands == nil {
		req.Commands = []string{}
	}

	if ok, reason := validation.ValidateDevice(req.Device); !ok {
		return nil, dm.NewError(dm.KindValidationFailed, reason, nil)
	}
	return &req, nil
}
