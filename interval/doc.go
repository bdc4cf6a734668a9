/*Package interval parses the genomic intervals bio-depth computes statistics
  over: region strings given on the command line, and the first three columns
  of BED files.
  Intervals are not merged.  Each BED line is reported separately, since each
  one gets its own histogram.
*/
package interval
