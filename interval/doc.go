/*Package interval indexes half-open genomic intervals that may overlap, such
  as the loci of consecutive tiles, which share their tag bases.
  Intervals are kept sorted by start; overlap and containment queries run in
  logarithmic time plus the size of the answer.
*/
package interval
