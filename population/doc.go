/*Package population provides the phased tile calls of a population of
  humans.

  A call is a cgf string, "path.version.step.variant[+span]", naming the tile
  variant a human carries on one phase starting at a position. A Source
  returns, for a closed range of positions, the calls of every human on both
  phases, ordered by position.

  MemSource keeps calls in memory, FileSource reads them from a
  snappy-compressed file, and LanternClient queries a lantern server over
  HTTP. PathSplitter wraps any Source and splits requests that cross paths,
  which lantern cannot answer in one request.
*/
package population
