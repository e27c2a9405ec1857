// Package reference holds the bases of reference assemblies, parsed from FASTA
// files, so that genome variants can be checked against the assembly they
// claim to edit.
//
// FASTA files consist of a number of named sequences that may be interrupted
// by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// >chr8
// ACGT
//
// Sequence names are the stretch of characters after '>' up to the first
// space, and must name a chromosome understood by tile.ParseChromosome;
// other sequences (unplaced contigs, decoys) are skipped.
package reference
