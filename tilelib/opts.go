package tilelib

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/reference"
	"github.com/grailbio/tilelib/tile"
)

// Opts defines the parameters of a Library.
type Opts struct {
	// TagLength is the number of bases shared by consecutive tiles of a path.
	TagLength int
	// Codec defines the address layout and the path-to-chromosome table.
	Codec *tile.Codec
	// Reference, if set, is used to check the reference bases of genome
	// variants.
	Reference reference.Genome
}

// DefaultOpts are the options of the human tile library.
var DefaultOpts = Opts{
	TagLength: 24,
	Codec:     tile.DefaultCodec,
}

func (o Opts) validate() error {
	if o.TagLength <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("tag length must be positive, got %d", o.TagLength))
	}
	if o.Codec == nil {
		return errors.E(errors.Invalid, "tilelib options: codec is not set")
	}
	return nil
}
