/* Copyright (C) 2020 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package gobbi

/* -------------------------------------------------------------------------- */

// Summary aggregation: a query region [from, to) is partitioned into
// nbins bins and each bin is filled with aggregate statistics, either by
// slicing precomputed zoom summary records or by aggregating raw signal
// intervals directly.

/* -------------------------------------------------------------------------- */

import "fmt"
import "math"

/* summary statistic selection
 * -------------------------------------------------------------------------- */

type SummaryStatistic int

const (
  SummaryMean SummaryStatistic = iota
  SummaryMax
  SummaryMin
  SummaryCov
  SummaryStd
  SummarySum
)

func ParseSummaryStatistic(name string) (SummaryStatistic, error) {
  switch name {
  case "mean":
    return SummaryMean, nil
  case "max":
    return SummaryMax, nil
  case "min":
    return SummaryMin, nil
  case "cov":
    return SummaryCov, nil
  case "std":
    return SummaryStd, nil
  case "sum":
    return SummarySum, nil
  }
  return SummaryMean, fmt.Errorf("`%s': %w", name, ErrInvalidSummary)
}

func (statistic SummaryStatistic) String() string {
  switch statistic {
  case SummaryMean:
    return "mean"
  case SummaryMax:
    return "max"
  case SummaryMin:
    return "min"
  case SummaryCov:
    return "cov"
  case SummaryStd:
    return "std"
  case SummarySum:
    return "sum"
  }
  return "invalid"
}

// Extract the requested statistic from a bin aggregate. The bin width
// nbases = (to-from)/nbins is needed for the coverage statistic and is
// passed as a float to avoid truncation. Must not be called on bins
// without data (Valid == 0); reaching an unknown statistic here means
// validation was bypassed.
func (statistic SummaryStatistic) Extract(s BbiSummaryStatistics, nbases float64) float64 {
  switch statistic {
  case SummaryMean:
    return s.Sum/s.Valid
  case SummaryMax:
    return s.Max
  case SummaryMin:
    return s.Min
  case SummarySum:
    return s.Sum
  case SummaryCov:
    return s.Valid/nbases
  case SummaryStd:
    n        := s.Valid
    variance := s.SumSquares - s.Sum*s.Sum/n
    if n > 1.0 {
      variance /= n - 1.0
    }
    return math.Sqrt(variance)
  }
  panic("internal error: invalid summary statistic")
}

/* bin partitioning
 * -------------------------------------------------------------------------- */

// Edges of bin i when [from, to) is partitioned into nbins bins with
// integer truncation. Degenerate bins are widened to one base so that
// aggregation always makes progress. Both aggregation paths use this
// partitioning.
func binEdges(from, to, nbins, i int) (int, int) {
  binFrom := from + (to-from)*(i+0)/nbins
  binTo   := from + (to-from)*(i+1)/nbins
  if binTo == binFrom {
    binTo = binFrom+1
  }
  return binFrom, binTo
}

/* zoom level selection
 * -------------------------------------------------------------------------- */

// Index of the coarsest zoom level with a reduction level of at most
// the given number of bases per bin, or -1 if the query is finer than
// the finest level. Zoom headers are sorted by increasing reduction.
func (bwf *BbiFile) bestZoom(reduction int) int {
  result := -1
  for i := 0; i < len(bwf.Header.ZoomHeaders); i++ {
    if int(bwf.Header.ZoomHeaders[i].ReductionLevel) <= reduction {
      result = i
    }
  }
  return result
}

/* aggregation from zoom summaries
 * -------------------------------------------------------------------------- */

// Fill nbins bins over [from, to) by proportionally slicing the given
// zoom summary records, which must be sorted by start position and
// non-overlapping. Records are consumed by a forward-only cursor since
// bins are processed in increasing order. Returns false if no bin
// received any contribution.
func summarizeZoomRecords(records []BbiZoomRecord, from, to, nbins int) ([]BbiSummaryStatistics, bool) {
  result := make([]BbiSummaryStatistics, nbins)
  valid  := false
  cursor := 0

  for i := 0; i < nbins; i++ {
    result[i].Reset()

    binFrom, binTo := binEdges(from, to, nbins, i)
    // discard records entirely left of this bin; later bins start
    // further right, so these records are never needed again
    for cursor < len(records) && int(records[cursor].End) <= binFrom {
      cursor++
    }
    for j := cursor; j < len(records) && int(records[j].Start) < binTo; j++ {
      record  := records[j]
      overlap := iMin(int(record.End), binTo) - iMax(int(record.Start), binFrom)
      if overlap <= 0 || record.End == record.Start {
        continue
      }
      fraction := float64(overlap)/float64(record.End - record.Start)
      result[i].AddScaled(record.Statistics(), fraction)
    }
    if result[i].Valid > 0 {
      valid = true
    }
  }
  return result, valid
}

/* aggregation from raw intervals
 * -------------------------------------------------------------------------- */

// Fill nbins bins over [from, to) by aggregating raw signal intervals
// (stored bigWig step values or bigBed coverage runs) with the same
// forward-only cursor pattern as the zoom path.
func summarizeIntervals(intervals []BbiRawInterval, from, to, nbins int) ([]BbiSummaryStatistics, bool) {
  result := make([]BbiSummaryStatistics, nbins)
  valid  := false
  cursor := 0

  for i := 0; i < nbins; i++ {
    result[i].Reset()

    binFrom, binTo := binEdges(from, to, nbins, i)
    for cursor < len(intervals) && intervals[cursor].To <= binFrom {
      cursor++
    }
    for j := cursor; j < len(intervals) && intervals[j].From < binTo; j++ {
      interval := intervals[j]
      overlap  := iMin(interval.To, binTo) - iMax(interval.From, binFrom)
      if overlap <= 0 {
        continue
      }
      result[i].AddSpan(interval.Value, overlap)
    }
    if result[i].Valid > 0 {
      valid = true
    }
  }
  return result, valid
}

/* -------------------------------------------------------------------------- */

func iMin(a, b int) int {
  if a < b {
    return a
  }
  return b
}

func iMax(a, b int) int {
  if a > b {
    return a
  }
  return b
}
