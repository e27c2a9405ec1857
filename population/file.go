package population

import (
	"context"
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/tilelib/tile"
)

// fileCalls is the on-disk form of a population: a snappy-compressed JSON
// object with the same human -> [phase0, phase1] shape lantern returns.
type fileCalls struct {
	Version int                    `json:"version"`
	Calls   map[string][2][]string `json:"calls"`
}

const fileVersion = 1

// WriteFile stores calls at path.
func WriteFile(ctx context.Context, path string, calls Calls) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "population: create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := snappy.NewBufferedWriter(out.Writer(ctx))
	fc := fileCalls{Version: fileVersion, Calls: make(map[string][2][]string, len(calls))}
	for name, phases := range calls {
		fc.Calls[name] = phases
	}
	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return errors.E(err, "population: encode", path)
	}
	if err := w.Close(); err != nil {
		return errors.E(err, "population: failed to close snappy writer", path)
	}
	return nil
}

// FileSource is a MemSource loaded from a file written by WriteFile.
type FileSource struct {
	*MemSource
	Path string
}

// OpenFile reads the population stored at path.
func OpenFile(ctx context.Context, path string, layout tile.Layout) (_ *FileSource, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "population: open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var fc fileCalls
	if err := json.NewDecoder(snappy.NewReader(in.Reader(ctx))).Decode(&fc); err != nil {
		return nil, errors.E(errors.Invalid, err, "population: decode", path)
	}
	if fc.Version != fileVersion {
		return nil, errors.E(errors.NotSupported, "population: unknown file version in", path)
	}
	calls := make(Calls, len(fc.Calls))
	for name, phases := range fc.Calls {
		calls[name] = phases
	}
	mem, err := NewMemSource(layout, calls)
	if err != nil {
		return nil, errors.E(err, path)
	}
	return &FileSource{MemSource: mem, Path: path}, nil
}
