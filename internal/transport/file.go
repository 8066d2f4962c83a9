package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/determinatesystems/detsys-ids-client/internal/config"
)

const stdoutSentinel = "/dev/stdout"

// File is the debugging transport variant: checkin() reads a JSON file,
// submit() appends the uncompressed JSON batch to it. The sentinel
// /dev/stdout is supported for interactive use.
type File struct {
	path string
}

// NewFile builds a File transport rooted at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Checkin(ctx context.Context) (*config.CheckinResponse, error) {
	// #nosec G304 -- path is application-configured, not untrusted input
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &config.CheckinResponse{}, nil
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	var out config.CheckinResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}
	return &out, nil
}

func (f *File) Submit(ctx context.Context, body []byte) error {
	if f.path == stdoutSentinel {
		_, err := os.Stdout.Write(append(body, '\n'))
		if err != nil {
			return &Error{Kind: KindNetwork, Err: err}
		}
		return nil
	}

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("opening %s: %w", f.path, err)}
	}
	defer fh.Close()

	if _, err := fh.Write(append(body, '\n')); err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	return nil
}

func (f *File) Close() error { return nil }
