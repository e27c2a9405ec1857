/*Package query reconstructs the sequences of a population from a tile
  library and the population's tile calls.

  A human carries, on each phase, one tile variant per position (or one
  spanning variant for a run of positions). Neighboring tiles of a path
  overlap by a tag, so a phase's sequence over a genomic window is the
  concatenation of the window's share of every called variant, with the
  shared tag dropped from each fragment after the first. Tiles of different
  paths abut and are concatenated as is.

  BetweenLoci returns the sequences of every human over a window
  [Lower, Upper). It builds a translator, mapping each variant that can be
  called inside the window to the bases it contributes there, then stitches
  each human's calls. Translators are cached per library generation.

  AroundLocus returns the bases within Radius of a target base. It starts
  from the call covering the target and walks outward, one neighboring call
  at a time, until enough bases are available on either side. Walks that
  leave the prefetched calls fetch one position at a time from the
  population source, and are bounded by Opts.MaxWalkSteps.

  Every junction is checked: the bases two fragments share must be equal. A
  mismatch means the library and the population disagree, and the query
  fails with an error of kind errors.Integrity.
*/
package query
