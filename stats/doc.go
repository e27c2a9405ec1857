// Package stats computes the genome statistics of a tile library: per path,
// per chromosome, and genome-wide counts of positions and tile variants, the
// largest span, and variant lengths.
//
// An Aggregator moves a library between two states. Initialize stores the
// first set of rows and fails if rows exist; Update replaces them and fails
// if none exist. Both compute every row from one snapshot of the library and
// commit all rows or none.
package stats
