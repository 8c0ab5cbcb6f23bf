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

// Check if the given local file or URL is a bigWig file.
func IsBigWigFile(pathOrUrl string) (bool, error) {
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
  return magic == BIGWIG_MAGIC, nil
}

/* bigWig interval fetcher
 * -------------------------------------------------------------------------- */

// Fetch strategy for bigWig files: signal intervals are the step
// intervals stored in the file.
type bigWigFetcher struct {
  bwf *BbiFile
}

// Return all stored intervals overlapping [from, to) on the chromosome
// with the given id, clipped to the query range. Intervals are sorted by
// start position and do not overlap by construction of the format.
func (fetcher bigWigFetcher) FetchIntervals(chromId, from, to int) ([]BbiRawInterval, error) {
  bwf := fetcher.bwf

  result := []BbiRawInterval{}

  for _, block := range bwf.Index.QueryBlocks(chromId, from, to) {
    buffer, err := block.Vertex.ReadBlock(bwf.reader, bwf.Order, bwf.Header.UncompressBufSize, block.Idx)
    if err != nil {
      return nil, err
    }
    header, intervals, err := decodeRawBlock(buffer, bwf.Order)
    if err != nil {
      return nil, err
    }
    if int(header.ChromId) != chromId {
      continue
    }
    for _, interval := range intervals {
      if interval.To <= from || interval.From >= to {
        continue
      }
      if interval.From < from {
        interval.From = from
      }
      if interval.To > to {
        interval.To = to
      }
      result = append(result, interval)
    }
  }
  return result, nil
}
