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

import   "encoding/binary"
import   "errors"
import   "math"
import   "testing"

/* -------------------------------------------------------------------------- */

func openTestBigWig(t *testing.T, order binary.ByteOrder, compress bool) *BbiFile {
  t.Helper()
  bwf, err := OpenBbiFile(testBigWigFixture(order, compress).write(t))
  if err != nil {
    t.Fatal(err)
  }
  t.Cleanup(func() { bwf.Close() })
  return bwf
}

func equalValues(a, b []float64) bool {
  if len(a) != len(b) {
    return false
  }
  for i := range a {
    if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
      return false
    }
    if !math.IsNaN(a[i]) && math.Abs(a[i]-b[i]) > 1e-6 {
      return false
    }
  }
  return true
}

/* -------------------------------------------------------------------------- */

func TestOpenBigWig(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  if !bwf.IsBigWig() || bwf.IsBigBed() {
    t.Error("TestOpenBigWig failed!")
  }
  if bwf.ChromSize("chr1") != 1000 {
    t.Error("TestOpenBigWig failed!")
  }
  if bwf.ChromSize("chr2") != 600 {
    t.Error("TestOpenBigWig failed!")
  }
  if bwf.ChromSize("chrX") != 0 {
    t.Error("TestOpenBigWig failed!")
  }
  if zooms := bwf.Zooms(); len(zooms) != 1 || zooms[0] != 10 {
    t.Error("TestOpenBigWig failed!")
  }
  info := bwf.Info()
  if info.Version != 4 {
    t.Error("TestOpenBigWig failed!")
  }
  if info.IsCompressed || info.IsSwapped {
    t.Error("TestOpenBigWig failed!")
  }
  if info.ChromCount != 2 {
    t.Error("TestOpenBigWig failed!")
  }
  if info.Summary.BasesCovered != 200 {
    t.Error("TestOpenBigWig failed!")
  }
  // 100 bases of value 5 plus 10 bases each of 0..9
  if math.Abs(info.Summary.Mean-(500.0+450.0)/200.0) > 1e-6 {
    t.Error("TestOpenBigWig failed!")
  }
}

func TestOpenVariants(t *testing.T) {

  orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}

  for _, order := range orders {
    for _, compress := range []bool{false, true} {
      bwf := openTestBigWig(t, order, compress)

      values, err := bwf.Fetch("chr1", 90, 110, DefaultFetchOptions())
      if err != nil {
        t.Fatal(err)
      }
      for i := 0; i < 10; i++ {
        if values[i] != 0.0 {
          t.Error("TestOpenVariants failed!")
        }
        if values[10+i] != 5.0 {
          t.Error("TestOpenVariants failed!")
        }
      }
      if (bwf.Order == binary.LittleEndian) != (order == binary.LittleEndian) {
        t.Error("TestOpenVariants failed!")
      }
      if bwf.Info().IsCompressed != compress {
        t.Error("TestOpenVariants failed!")
      }
    }
  }
}

func TestOpenTwoLevelIndex(t *testing.T) {

  fixture         := testBigWigFixture(binary.LittleEndian, false)
  fixture.twoLevel = true

  bwf, err := OpenBbiFile(fixture.write(t))
  if err != nil {
    t.Fatal(err)
  }
  defer bwf.Close()

  values, err := bwf.Fetch("chr1", 100, 200, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  for _, value := range values {
    if value != 5.0 {
      t.Error("TestOpenTwoLevelIndex failed!")
    }
  }
}

func TestOpenErrors(t *testing.T) {

  if _, err := OpenBbiFile("does_not_exist.bw"); !errors.Is(err, ErrNotFound) {
    t.Error("TestOpenErrors failed!")
  }
  if _, err := OpenBbiFile("query.go"); !errors.Is(err, ErrNoBbi) {
    t.Error("TestOpenErrors failed!")
  }
}

func TestIsBigWigFile(t *testing.T) {

  filenameBw := testBigWigFixture(binary.LittleEndian, false).write(t)
  filenameBb := testBigBedFixture(binary.LittleEndian, false).write(t)

  if ok, _ := IsBigWigFile(filenameBw); !ok {
    t.Error("TestIsBigWigFile failed!")
  }
  if ok, _ := IsBigWigFile(filenameBb); ok {
    t.Error("TestIsBigWigFile failed!")
  }
  if ok, _ := IsBigBedFile(filenameBb); !ok {
    t.Error("TestIsBigWigFile failed!")
  }
  if ok, _ := IsBigBedFile(filenameBw); ok {
    t.Error("TestIsBigWigFile failed!")
  }
}

/* -------------------------------------------------------------------------- */

func TestFetchFullResolution(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  values, err := bwf.Fetch("chr1", 0, 300, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  if len(values) != 300 {
    t.Fatal("TestFetchFullResolution failed!")
  }
  for i := 0; i < 300; i++ {
    expected := 0.0
    if i >= 100 && i < 200 {
      expected = 5.0
    }
    if values[i] != expected {
      t.Errorf("TestFetchFullResolution failed at position %d!", i)
    }
  }
}

func TestFetchOutOfBounds(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  // 50 positions before the chromosome begin, then 50 covered bases
  values, err := bwf.Fetch("chr1", -50, 50, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  if len(values) != 100 {
    t.Fatal("TestFetchOutOfBounds failed!")
  }
  for i := 0; i < 50; i++ {
    if !math.IsNaN(values[i]) {
      t.Error("TestFetchOutOfBounds failed!")
    }
    if values[50+i] != 0.0 {
      t.Error("TestFetchOutOfBounds failed!")
    }
  }
  // past the chromosome end
  values, err = bwf.Fetch("chr1", 950, 1050, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  for i := 0; i < 50; i++ {
    if values[i] != 0.0 {
      t.Error("TestFetchOutOfBounds failed!")
    }
    if !math.IsNaN(values[50+i]) {
      t.Error("TestFetchOutOfBounds failed!")
    }
  }
  // the out-of-bounds fill value is configurable
  options    := DefaultFetchOptions()
  options.Oob = -1.0

  values, err = bwf.Fetch("chr1", -10, 10, options)
  if err != nil {
    t.Fatal(err)
  }
  for i := 0; i < 10; i++ {
    if values[i] != -1.0 {
      t.Error("TestFetchOutOfBounds failed!")
    }
  }
}

func TestFetchValidation(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  if _, err := bwf.Fetch("chrX", 0, 100, DefaultFetchOptions()); !errors.Is(err, ErrChromNotFound) {
    t.Error("TestFetchValidation failed!")
  }
  if _, err := bwf.Fetch("chr1", 1500, 1600, DefaultFetchOptions()); !errors.Is(err, ErrStartExceedsChrom) {
    t.Error("TestFetchValidation failed!")
  }
  if _, err := bwf.Fetch("chr1", 100, 50, DefaultFetchOptions()); !errors.Is(err, ErrNegativeLength) {
    t.Error("TestFetchValidation failed!")
  }
  options        := DefaultFetchOptions()
  options.Summary = "median"
  if _, err := bwf.Fetch("chr1", 0, 100, options); !errors.Is(err, ErrInvalidSummary) {
    t.Error("TestFetchValidation failed!")
  }
  // a negative end position resolves to the chromosome size
  values, err := bwf.Fetch("chr1", 900, -1, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  if len(values) != 100 {
    t.Error("TestFetchValidation failed!")
  }
  // an empty query range is valid
  values, err = bwf.Fetch("chr1", 100, 100, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  if len(values) != 0 {
    t.Error("TestFetchValidation failed!")
  }
}

func TestFetchIdempotent(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, true)

  options     := DefaultFetchOptions()
  options.Bins = 20

  first, err := bwf.Fetch("chr1", 0, 400, options)
  if err != nil {
    t.Fatal(err)
  }
  for i := 0; i < 5; i++ {
    values, err := bwf.Fetch("chr1", 0, 400, options)
    if err != nil {
      t.Fatal(err)
    }
    if !equalValues(first, values) {
      t.Error("TestFetchIdempotent failed!")
    }
  }
}

func TestFetchAfterClose(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  if err := bwf.Close(); err != nil {
    t.Fatal(err)
  }
  // closing twice is fine
  if err := bwf.Close(); err != nil {
    t.Fatal(err)
  }
  if _, err := bwf.Fetch("chr1", 0, 100, DefaultFetchOptions()); !errors.Is(err, ErrClosed) {
    t.Error("TestFetchAfterClose failed!")
  }
  if _, err := bwf.FetchIntervals("chr1", 0, 100); !errors.Is(err, ErrClosed) {
    t.Error("TestFetchAfterClose failed!")
  }
}

/* -------------------------------------------------------------------------- */

func TestFetchBins(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  // a step size of 20 selects the zoom level with reduction 10
  options     := DefaultFetchOptions()
  options.Bins = 5

  // all bins fall into the constant region
  values, err := bwf.Fetch("chr1", 100, 200, options)
  if err != nil {
    t.Fatal(err)
  }
  if len(values) != 5 {
    t.Fatal("TestFetchBins failed!")
  }
  for _, value := range values {
    if math.Abs(value-5.0) > 1e-6 {
      t.Error("TestFetchBins failed!")
    }
  }
  // the zoom path and the exact path must agree here
  options.Exact = true
  exact, err := bwf.Fetch("chr1", 100, 200, options)
  if err != nil {
    t.Fatal(err)
  }
  if !equalValues(values, exact) {
    t.Error("TestFetchBins failed!")
  }
}

func TestFetchBinsStatistics(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  options      := DefaultFetchOptions()
  options.Bins  = 1
  options.Exact = true

  expected := map[string]float64{
    "mean": 5.0,
    "min" : 5.0,
    "max" : 5.0,
    "sum" : 500.0,
    "cov" : 1.0,
    "std" : 0.0 }

  for summary, value := range expected {
    options.Summary = summary
    values, err := bwf.Fetch("chr1", 100, 200, options)
    if err != nil {
      t.Fatal(err)
    }
    if math.Abs(values[0]-value) > 1e-4 {
      t.Errorf("TestFetchBinsStatistics failed for statistic %s!", summary)
    }
  }
  // half of the bin is covered with data
  options.Summary = "cov"
  values, err := bwf.Fetch("chr1", 100, 300, options)
  if err != nil {
    t.Fatal(err)
  }
  if math.Abs(values[0]-0.5) > 1e-6 {
    t.Error("TestFetchBinsStatistics failed!")
  }
}

func TestFetchBinsMissing(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  options        := DefaultFetchOptions()
  options.Bins    = 4
  options.Missing = math.NaN()

  // bins [0,100) [100,200) [200,300) [300,400)
  values, err := bwf.Fetch("chr1", 0, 400, options)
  if err != nil {
    t.Fatal(err)
  }
  if !math.IsNaN(values[0]) || !math.IsNaN(values[2]) || !math.IsNaN(values[3]) {
    t.Error("TestFetchBinsMissing failed!")
  }
  if math.Abs(values[1]-5.0) > 1e-6 {
    t.Error("TestFetchBinsMissing failed!")
  }
}

func TestFetchBinsOutOfBounds(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  options     := DefaultFetchOptions()
  options.Bins = 2
  options.Oob  = -7.0

  // first bin starts before the chromosome begin
  values, err := bwf.Fetch("chr1", -100, 100, options)
  if err != nil {
    t.Fatal(err)
  }
  if values[0] != -7.0 {
    t.Error("TestFetchBinsOutOfBounds failed!")
  }
  if values[1] != 0.0 {
    t.Error("TestFetchBinsOutOfBounds failed!")
  }
}

func TestFetchExactMatchesZoom(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  // with one bin per base there is no aggregation error, so both
  // paths must produce identical results
  options     := DefaultFetchOptions()
  options.Bins = 100

  zoomed, err := bwf.Fetch("chr1", 100, 200, options)
  if err != nil {
    t.Fatal(err)
  }
  options.Exact = true
  exact, err := bwf.Fetch("chr1", 100, 200, options)
  if err != nil {
    t.Fatal(err)
  }
  if !equalValues(zoomed, exact) {
    t.Error("TestFetchExactMatchesZoom failed!")
  }
  // a bin-per-base mean reduces to the full resolution values
  fullres, err := bwf.Fetch("chr1", 100, 200, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  if !equalValues(exact, fullres) {
    t.Error("TestFetchExactMatchesZoom failed!")
  }
}

/* -------------------------------------------------------------------------- */

func TestStackup(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  seqnames := []string{"chr1", "chr1", "chr2"}
  froms    := []int   {100, 150, 0}
  tos      := []int   {200, 250, 100}

  matrix, err := bwf.Stackup(seqnames, froms, tos, DefaultFetchOptions())
  if err != nil {
    t.Fatal(err)
  }
  if len(matrix) != 3 {
    t.Fatal("TestStackup failed!")
  }
  for _, row := range matrix {
    if len(row) != 100 {
      t.Error("TestStackup failed!")
    }
  }
  if matrix[0][0] != 5.0 || matrix[1][60] != 0.0 || matrix[2][75] != 7.0 {
    t.Error("TestStackup failed!")
  }
}

func TestStackupUnequalWindows(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  seqnames := []string{"chr1", "chr1"}
  froms    := []int   {0, 0}
  tos      := []int   {100, 200}

  if _, err := bwf.Stackup(seqnames, froms, tos, DefaultFetchOptions()); !errors.Is(err, ErrUnequalWindows) {
    t.Error("TestStackupUnequalWindows failed!")
  }
  // with binning the windows may differ in length
  options     := DefaultFetchOptions()
  options.Bins = 10

  matrix, err := bwf.Stackup(seqnames, froms, tos, options)
  if err != nil {
    t.Fatal(err)
  }
  for _, row := range matrix {
    if len(row) != 10 {
      t.Error("TestStackupUnequalWindows failed!")
    }
  }
}

/* -------------------------------------------------------------------------- */

func TestFetchIntervals(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  intervals, err := bwf.FetchIntervals("chr1", 150, 250)
  if err != nil {
    t.Fatal(err)
  }
  if len(intervals) != 1 {
    t.Fatal("TestFetchIntervals failed!")
  }
  if intervals[0].Chrom != "chr1" || intervals[0].From != 150 || intervals[0].To != 200 {
    t.Error("TestFetchIntervals failed!")
  }
  if intervals[0].Value != 5.0 {
    t.Error("TestFetchIntervals failed!")
  }
}

func TestFetchSummaries(t *testing.T) {

  bwf := openTestBigWig(t, binary.LittleEndian, false)

  records, err := bwf.FetchSummaries("chr1", 100, 200, 0)
  if err != nil {
    t.Fatal(err)
  }
  if len(records) != 10 {
    t.Fatal("TestFetchSummaries failed!")
  }
  for i, record := range records {
    if int(record.Start) != 100+10*i || int(record.End) != 110+10*i {
      t.Error("TestFetchSummaries failed!")
    }
    if record.Valid != 10 || record.Sum != 50 {
      t.Error("TestFetchSummaries failed!")
    }
  }
  // only records overlapping the query are returned
  records, err = bwf.FetchSummaries("chr1", 105, 115, 0)
  if err != nil {
    t.Fatal(err)
  }
  if len(records) != 2 {
    t.Error("TestFetchSummaries failed!")
  }
  if _, err := bwf.FetchSummaries("chr1", 100, 200, 5); !errors.Is(err, ErrInvalidZoom) {
    t.Error("TestFetchSummaries failed!")
  }
}
