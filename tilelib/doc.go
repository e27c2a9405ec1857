/*Package tilelib holds a tile library: tile positions, the tile variants
  observed at them, their genomic loci on reference assemblies, and the
  genome variants the tile variants translate to.

  A Library validates every entity before it is inserted. Validation
  failures are returned as a *ValidationError that lists every violated
  constraint, keyed by a short name such as "start_tag-sequence". A rejected
  entity leaves the Library unchanged.

  Tile variants may span several consecutive positions of a path. Such a
  variant starts with the start tag of its first position and ends with the
  end tag of its last position, and its locus runs from the start of the
  first position's locus to the end of the last position's locus (see
  Library.Locus).

  Libraries are persisted with WriteSnapshot and restored with ReadSnapshot.
  Bulk data can be loaded from TSV files with LoadTSV.
*/
package tilelib
