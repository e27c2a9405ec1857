// Package tile implements the addressing scheme of a tile library.
//
// A tile position is a packed integer made of three fixed-width hex fields,
// version|path|step, most significant first. A tile variant appends a fourth
// field, the variant value. Positions and variants have a dotted hex form
// that follows the packed order, e.g. "00.01a.002f" for version 0, path 0x1a,
// step 0x2f under DefaultLayout.
//
// Population calls use a different notation, the cgf string
// "path.version.step.variant[+span]", where span is the number of positions
// covered by the call in hex. The cgf form is bit-exact: every field has the
// fixed width given by the Layout and uses lowercase hex digits.
//
// Paths are assigned to chromosomes through a PathTable, a cumulative
// boundary table. Codec bundles a Layout with a PathTable and answers the
// questions that need both, such as the smallest position on a chromosome.
package tile
