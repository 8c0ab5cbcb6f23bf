/* Copyright (C) 2016-2020 Philipp Benner
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

import "sort"

/* -------------------------------------------------------------------------- */

// Check if the given local file or URL is a bigBed file.
func IsBigBedFile(pathOrUrl string) (bool, error) {
  reader, closer, err := openReader(pathOrUrl)
  if err != nil {
    return false, err
  }
  if closer != nil {
    defer closer.Close()
  }
  magic, _, err := readMagic(reader)
  if err != nil {
    return false, nil
  }
  return magic == BIGBED_MAGIC, nil
}

/* bigBed record fetch
 * -------------------------------------------------------------------------- */

// Return all stored bigBed records overlapping [from, to) on the
// chromosome with the given id, in increasing start order and with
// unclipped coordinates.
func (bwf *BbiFile) fetchBedEntries(chromId, from, to int) ([]BedEntry, error) {
  result := []BedEntry{}

  for _, block := range bwf.Index.QueryBlocks(chromId, from, to) {
    buffer, err := block.Vertex.ReadBlock(bwf.reader, bwf.Order, bwf.Header.UncompressBufSize, block.Idx)
    if err != nil {
      return nil, err
    }
    entries, err := decodeBedBlock(buffer, bwf.Order)
    if err != nil {
      return nil, err
    }
    for _, entry := range entries {
      if entry.ChromId != chromId || entry.To <= from || entry.From >= to {
        continue
      }
      result = append(result, entry)
    }
  }
  return result, nil
}

/* coverage transform
 * -------------------------------------------------------------------------- */

// Convert a set of possibly overlapping features into runs of constant
// coverage depth over [from, to) by sweeping over the clipped feature
// endpoints. Only covered runs (depth >= 1) are emitted; the runs are
// sorted, non-overlapping, and adjacent runs differ in depth.
func coverageIntervals(entries []BedEntry, from, to int) []BbiRawInterval {
  if len(entries) == 0 {
    return []BbiRawInterval{}
  }
  starts := make([]int, len(entries))
  ends   := make([]int, len(entries))
  for i, entry := range entries {
    starts[i] = entry.From
    ends  [i] = entry.To
    if starts[i] < from {
      starts[i] = from
    }
    if ends[i] > to {
      ends[i] = to
    }
  }
  sort.Ints(starts)
  sort.Ints(ends)

  intervals := []BbiRawInterval{}

  depth    := 0
  position := from
  i, j     := 0, 0
  for j < len(ends) {
    // next position where the depth changes
    next := ends[j]
    if i < len(starts) && starts[i] < next {
      next = starts[i]
    }
    if depth > 0 && next > position {
      if n := len(intervals); n > 0 && intervals[n-1].To == position && intervals[n-1].Value == float64(depth) {
        intervals[n-1].To = next
      } else {
        intervals = append(intervals, BbiRawInterval{position, next, float64(depth)})
      }
    }
    if next > position {
      position = next
    }
    // apply all events at this position
    for i < len(starts) && starts[i] == position {
      depth++; i++
    }
    for j < len(ends) && ends[j] == position {
      depth--; j++
    }
  }
  return intervals
}

/* bigBed coverage fetcher
 * -------------------------------------------------------------------------- */

// Fetch strategy for bigBed files: the signal is the per-base count of
// overlapping features, represented as runs of constant depth.
type bigBedFetcher struct {
  bwf *BbiFile
}

func (fetcher bigBedFetcher) FetchIntervals(chromId, from, to int) ([]BbiRawInterval, error) {
  entries, err := fetcher.bwf.fetchBedEntries(chromId, from, to)
  if err != nil {
    return nil, err
  }
  return coverageIntervals(entries, from, to), nil
}
