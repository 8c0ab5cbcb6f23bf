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

// File handle and query surface: open a bigWig or bigBed resource from a
// local path or URL and fetch signal values, intervals and summaries.

/* -------------------------------------------------------------------------- */

import "encoding/binary"
import "fmt"
import "io"
import "math"
import "os"
import "strings"

import "github.com/pbenner/gobbi/lib/bufferedReadSeeker"
import "github.com/pbenner/gobbi/lib/seekinghttp"

/* -------------------------------------------------------------------------- */

type BbiFileKind int

const (
  KindBigWig BbiFileKind = iota
  KindBigBed
)

// Fetch strategy over the file kind, fixed when the file is opened:
// bigWig files yield their stored step intervals, bigBed files yield
// feature coverage runs.
type intervalFetcher interface {
  FetchIntervals(chromId, from, to int) ([]BbiRawInterval, error)
}

/* -------------------------------------------------------------------------- */

// An opened bigWig or bigBed resource. The handle owns the underlying
// reader and the parsed index structures until Close() is called. A
// handle must not be used from multiple threads without external
// synchronization; parallel work should use independent handles.
type BbiFile struct {
  Header    BbiHeader
  ChromData BData
  Index     RTree
  IndexZoom []RTree
  Order     binary.ByteOrder
  Genome    Genome
  Kind      BbiFileKind

  reader    io.ReadSeeker
  closer    io.Closer
  fetcher   intervalFetcher
  sqlText   string
  closed    bool
}

/* -------------------------------------------------------------------------- */

// Open the given local path or http(s) URL as a plain byte-range
// readable resource.
func openReader(pathOrUrl string) (io.ReadSeeker, io.Closer, error) {
  if strings.HasPrefix(pathOrUrl, "http://") || strings.HasPrefix(pathOrUrl, "https://") {
    reader := seekinghttp.New(pathOrUrl)
    // check that the resource is reachable before parsing anything
    if _, err := reader.Size(); err != nil {
      return nil, nil, fmt.Errorf("fetching `%s' failed: %v: %w", pathOrUrl, err, ErrRemoteOpen)
    }
    return reader, nil, nil
  }
  f, err := os.Open(pathOrUrl)
  if err != nil {
    if os.IsNotExist(err) {
      return nil, nil, fmt.Errorf("opening `%s' failed: %w", pathOrUrl, ErrNotFound)
    }
    return nil, nil, err
  }
  return f, f, nil
}

// Open a bigWig or bigBed file from a local path or an http(s) URL. The
// file kind is detected from the magic number, which is checked in both
// byte orders.
func OpenBbiFile(pathOrUrl string) (*BbiFile, error) {
  reader, closer, err := openReader(pathOrUrl)
  if err != nil {
    return nil, err
  }
  bwf, err := openBbi(reader, closer)
  if err != nil {
    if closer != nil {
      closer.Close()
    }
    return nil, err
  }
  return bwf, nil
}

func openBbi(reader io.ReadSeeker, closer io.Closer) (*BbiFile, error) {
  bwf := new(BbiFile)
  bwf.closer = closer

  if buffered, err := bufferedReadSeeker.New(reader, 8192); err != nil {
    return nil, err
  } else {
    bwf.reader = buffered
  }
  // parse header
  if order, err := bwf.Header.Read(bwf.reader); err != nil {
    return nil, err
  } else {
    bwf.Order = order
  }
  switch bwf.Header.Magic {
  case BIGWIG_MAGIC:
    bwf.Kind    = KindBigWig
    bwf.fetcher = bigWigFetcher{bwf}
  case BIGBED_MAGIC:
    bwf.Kind    = KindBigBed
    bwf.fetcher = bigBedFetcher{bwf}
  }
  // parse chromosome list, which is represented as a tree
  if _, err := bwf.reader.Seek(int64(bwf.Header.CtOffset), io.SeekStart); err != nil {
    return nil, err
  }
  if err := bwf.ChromData.Read(bwf.reader, bwf.Order); err != nil {
    return nil, err
  }
  if genome, err := bwf.ChromData.Genome(bwf.Order); err != nil {
    return nil, err
  } else {
    bwf.Genome = genome
  }
  // parse data index
  if _, err := bwf.reader.Seek(int64(bwf.Header.IndexOffset), io.SeekStart); err != nil {
    return nil, err
  }
  if err := bwf.Index.Read(bwf.reader, bwf.Order); err != nil {
    return nil, err
  }
  // parse zoom level indices
  bwf.IndexZoom = make([]RTree, bwf.Header.ZoomLevels)
  for i := 0; i < int(bwf.Header.ZoomLevels); i++ {
    if _, err := bwf.reader.Seek(int64(bwf.Header.ZoomHeaders[i].IndexOffset), io.SeekStart); err != nil {
      return nil, err
    }
    if err := bwf.IndexZoom[i].Read(bwf.reader, bwf.Order); err != nil {
      return nil, err
    }
  }
  // read embedded schema text
  if bwf.Kind == KindBigBed {
    if text, err := bwf.Header.ReadSqlText(bwf.reader); err != nil {
      return nil, err
    } else {
      bwf.sqlText = text
    }
  }
  return bwf, nil
}

// Close the handle and release the underlying resources. Close is
// idempotent; any query on a closed handle fails with ErrClosed.
func (bwf *BbiFile) Close() error {
  if bwf.closed {
    return nil
  }
  bwf.closed = true
  if bwf.closer != nil {
    return bwf.closer.Close()
  }
  return nil
}

func (bwf *BbiFile) checkOpen() error {
  if bwf.closed {
    return fmt.Errorf("query failed: %w", ErrClosed)
  }
  return nil
}

/* metadata
 * -------------------------------------------------------------------------- */

func (bwf *BbiFile) IsBigWig() bool {
  return bwf.Kind == KindBigWig
}

func (bwf *BbiFile) IsBigBed() bool {
  return bwf.Kind == KindBigBed
}

// Ordered table of chromosome names and sizes, in chromosome-id order.
func (bwf *BbiFile) Chromsizes() Genome {
  return bwf.Genome
}

// Size of the given chromosome, or zero if the chromosome is not part
// of the file.
func (bwf *BbiFile) ChromSize(seqname string) int {
  return bwf.Genome.SeqSize(seqname)
}

// Reduction levels (bases per summary bin) of the precomputed zoom
// levels, in ascending order.
func (bwf *BbiFile) Zooms() []int {
  zooms := make([]int, len(bwf.Header.ZoomHeaders))
  for i := 0; i < len(bwf.Header.ZoomHeaders); i++ {
    zooms[i] = int(bwf.Header.ZoomHeaders[i].ReductionLevel)
  }
  return zooms
}

// Index of the coarsest zoom level with a reduction of at most the
// given number of bases, or -1 if no level qualifies.
func (bwf *BbiFile) BestZoom(reduction int) int {
  return bwf.bestZoom(reduction)
}

// Aggregate statistics over the entire file.
func (bwf *BbiFile) TotalSummary() BbiSummaryStatistics {
  return BbiSummaryStatistics{
    Valid     : float64(bwf.Header.NBasesCovered),
    Min       : bwf.Header.MinVal,
    Max       : bwf.Header.MaxVal,
    Sum       : bwf.Header.SumData,
    SumSquares: bwf.Header.SumSquared }
}

// Schema of a bigBed file: the embedded AutoSql text if present, the
// standard BED schema truncated to the declared field count otherwise.
func (bwf *BbiFile) Schema() (*AutoSqlSchema, error) {
  if bwf.Kind != KindBigBed {
    return nil, fmt.Errorf("file carries no schema")
  }
  if bwf.sqlText != "" {
    return ParseAutoSql(bwf.sqlText)
  }
  return defaultBedSchema(int(bwf.Header.FieldCount))
}

/* -------------------------------------------------------------------------- */

type BbiSummaryInfo struct {
  BasesCovered uint64
  Sum          float64
  Mean         float64
  Min          float64
  Max          float64
  Std          float64
}

type BbiFileInfo struct {
  Version         int
  IsCompressed    bool
  IsSwapped       bool
  PrimaryDataSize int64
  ZoomLevels      int
  ChromCount      int
  Summary         BbiSummaryInfo
}

func (bwf *BbiFile) Info() BbiFileInfo {
  info := BbiFileInfo{
    Version        : int(bwf.Header.Version),
    IsCompressed   : bwf.Header.UncompressBufSize != 0,
    IsSwapped      : bwf.Order != binary.LittleEndian,
    PrimaryDataSize: int64(bwf.Header.IndexOffset) - int64(bwf.Header.DataOffset),
    ZoomLevels     : int(bwf.Header.ZoomLevels),
    ChromCount     : bwf.Genome.Length() }

  info.Summary.BasesCovered = bwf.Header.NBasesCovered
  info.Summary.Sum          = bwf.Header.SumData
  info.Summary.Min          = bwf.Header.MinVal
  info.Summary.Max          = bwf.Header.MaxVal
  if s := bwf.TotalSummary(); s.Valid > 0 {
    info.Summary.Mean = SummaryMean.Extract(s, 0)
    info.Summary.Std  = SummaryStd .Extract(s, 0)
  }
  return info
}

/* fetch options
 * -------------------------------------------------------------------------- */

type FetchOptions struct {
  // number of bins; a value below one requests one value per base
  Bins    int
  // fill value for bins without data
  Missing float64
  // fill value for positions outside the chromosome
  Oob     float64
  // summary statistic: mean, max, min, cov, std or sum
  Summary string
  // aggregate from full resolution data even if a zoom level qualifies
  Exact   bool
}

func DefaultFetchOptions() FetchOptions {
  return FetchOptions{
    Bins   : -1,
    Missing: 0.0,
    Oob    : math.NaN(),
    Summary: "mean",
    Exact  : false }
}

/* fetch
 * -------------------------------------------------------------------------- */

// Validate and resolve the query coordinates. Returns the chromosome id
// and the resolved end position.
func (bwf *BbiFile) resolveRange(seqname string, from, to int) (int, int, error) {
  chromId, err := bwf.Genome.GetIdx(seqname)
  if err != nil {
    return -1, to, err
  }
  size := bwf.Genome.Lengths[chromId]
  if from > size {
    return -1, to, fmt.Errorf("query [%d, %d) on sequence `%s' of length %d: %w", from, to, seqname, size, ErrStartExceedsChrom)
  }
  if to < 0 {
    to = size
  }
  if to - from < 0 {
    return -1, to, fmt.Errorf("query [%d, %d) on sequence `%s': %w", from, to, seqname, ErrNegativeLength)
  }
  return chromId, to, nil
}

// Fetch the signal over [from, to) on the given chromosome as a float64
// vector. With options.Bins >= 1 the region is partitioned into that
// many bins and each bin is summarized with options.Summary; otherwise
// one value per base is returned. A negative end position is resolved
// to the chromosome size; a negative start position marks positions
// before the chromosome begin, which are reported as options.Oob. Bins
// without data are reported as options.Missing.
func (bwf *BbiFile) Fetch(seqname string, from, to int, options FetchOptions) ([]float64, error) {
  if err := bwf.checkOpen(); err != nil {
    return nil, err
  }
  chromId, to, err := bwf.resolveRange(seqname, from, to)
  if err != nil {
    return nil, err
  }
  statistic, err := ParseSummaryStatistic(options.Summary)
  if err != nil {
    return nil, err
  }
  size      := bwf.Genome.Lengths[chromId]
  validFrom := iMax(from, 0)
  validTo   := iMin(to, size)

  if options.Bins >= 1 {
    return bwf.fetchBins(chromId, from, to, validFrom, validTo, statistic, options)
  }
  return bwf.fetchFull(chromId, from, to, validFrom, validTo, options)
}

// One value per base: stored intervals (or coverage runs) are written
// into the output in a single pass. Adjacent intervals with the same
// value are coalesced into one write.
func (bwf *BbiFile) fetchFull(chromId, from, to, validFrom, validTo int, options FetchOptions) ([]float64, error) {
  result := make([]float64, to-from)
  for i := range result {
    result[i] = options.Missing
  }
  intervals, err := bwf.fetcher.FetchIntervals(chromId, validFrom, validTo)
  if err != nil {
    return nil, err
  }
  flush := func(runFrom, runTo int, value float64) {
    for i := runFrom; i < runTo; i++ {
      result[i-from] = value
    }
  }
  if len(intervals) > 0 {
    runFrom  := intervals[0].From
    runTo    := intervals[0].To
    runValue := intervals[0].Value
    for _, interval := range intervals[1:] {
      if interval.From == runTo && interval.Value == runValue {
        runTo = interval.To
        continue
      }
      flush(runFrom, runTo, runValue)
      runFrom  = interval.From
      runTo    = interval.To
      runValue = interval.Value
    }
    flush(runFrom, runTo, runValue)
  }
  // out-of-bounds positions always win over data
  for i := from; i < validFrom; i++ {
    result[i-from] = options.Oob
  }
  for i := validTo; i < to; i++ {
    result[i-from] = options.Oob
  }
  return result, nil
}

// Summarized fetch: aggregate from the coarsest qualifying zoom level,
// or from full resolution data if none qualifies or exact mode is
// requested.
func (bwf *BbiFile) fetchBins(chromId, from, to, validFrom, validTo int, statistic SummaryStatistic, options FetchOptions) ([]float64, error) {
  nbins  := options.Bins
  result := make([]float64, nbins)
  for i := range result {
    result[i] = options.Missing
  }
  stepSize := (to-from)/nbins
  zoomIdx  := -1
  if !options.Exact {
    // pick a zoom level fine enough that at most about two summary
    // records fall into one output bin
    zoomIdx = bwf.bestZoom(stepSize/2)
  }
  var summaries []BbiSummaryStatistics
  var ok        bool

  if zoomIdx >= 0 {
    records, err := bwf.fetchZoomRecords(zoomIdx, chromId, validFrom, validTo)
    if err != nil {
      return nil, err
    }
    summaries, ok = summarizeZoomRecords(records, from, to, nbins)
  } else {
    intervals, err := bwf.fetcher.FetchIntervals(chromId, validFrom, validTo)
    if err != nil {
      return nil, err
    }
    summaries, ok = summarizeIntervals(intervals, from, to, nbins)
  }
  if ok {
    nbases := float64(to-from)/float64(nbins)
    for i := 0; i < nbins; i++ {
      if summaries[i].Valid > 0 {
        result[i] = statistic.Extract(summaries[i], nbases)
      }
    }
  }
  // out-of-bounds bins always win over computed content
  for i := 0; i < nbins; i++ {
    if position := from + i*stepSize; position < validFrom || position >= validTo {
      result[i] = options.Oob
    }
  }
  return result, nil
}

/* stackup
 * -------------------------------------------------------------------------- */

// Fetch multiple regions as a matrix with one row per region. With
// options.Bins >= 1 regions may have different lengths and each row is
// rescaled to the requested number of bins; at full resolution all
// regions must have the same length.
func (bwf *BbiFile) Stackup(seqnames []string, froms, tos []int, options FetchOptions) ([][]float64, error) {
  if err := bwf.checkOpen(); err != nil {
    return nil, err
  }
  if len(seqnames) != len(froms) || len(seqnames) != len(tos) {
    return nil, fmt.Errorf("stackup failed: seqnames, starts and ends differ in length")
  }
  // resolve and validate all rows before fetching anything
  resolved := make([]int, len(tos))
  for i := 0; i < len(seqnames); i++ {
    _, to, err := bwf.resolveRange(seqnames[i], froms[i], tos[i])
    if err != nil {
      return nil, err
    }
    resolved[i] = to
  }
  if options.Bins < 1 {
    for i := 1; i < len(seqnames); i++ {
      if resolved[i]-froms[i] != resolved[0]-froms[0] {
        return nil, fmt.Errorf("stackup at full resolution: %w", ErrUnequalWindows)
      }
    }
  }
  result := make([][]float64, len(seqnames))
  for i := 0; i < len(seqnames); i++ {
    row, err := bwf.Fetch(seqnames[i], froms[i], resolved[i], options)
    if err != nil {
      return nil, err
    }
    result[i] = row
  }
  return result, nil
}

/* intervals and summaries
 * -------------------------------------------------------------------------- */

// Interval record returned by FetchIntervals: a value-bearing step
// interval for bigWig files, a BED-like record with extra columns for
// bigBed files.
type BbiInterval struct {
  Chrom  string
  From   int
  To     int
  Value  float64
  Fields []string
}

// Fetch the stored records overlapping [from, to): step intervals with
// their values for bigWig files (clipped to the query), BED records
// with their extra columns for bigBed files (unclipped).
func (bwf *BbiFile) FetchIntervals(seqname string, from, to int) ([]BbiInterval, error) {
  if err := bwf.checkOpen(); err != nil {
    return nil, err
  }
  chromId, to, err := bwf.resolveRange(seqname, from, to)
  if err != nil {
    return nil, err
  }
  size      := bwf.Genome.Lengths[chromId]
  validFrom := iMax(from, 0)
  validTo   := iMin(to, size)

  result := []BbiInterval{}

  if bwf.Kind == KindBigBed {
    entries, err := bwf.fetchBedEntries(chromId, validFrom, validTo)
    if err != nil {
      return nil, err
    }
    for _, entry := range entries {
      interval := BbiInterval{
        Chrom: seqname,
        From : entry.From,
        To   : entry.To,
        Value: math.NaN() }
      if entry.Rest != "" {
        interval.Fields = strings.Split(entry.Rest, "\t")
      }
      result = append(result, interval)
    }
  } else {
    intervals, err := bwf.fetcher.FetchIntervals(chromId, validFrom, validTo)
    if err != nil {
      return nil, err
    }
    for _, interval := range intervals {
      result = append(result, BbiInterval{
        Chrom: seqname,
        From : interval.From,
        To   : interval.To,
        Value: interval.Value })
    }
  }
  return result, nil
}

// Fetch the precomputed summary records of one zoom level overlapping
// [from, to), in increasing start order.
func (bwf *BbiFile) FetchSummaries(seqname string, from, to int, zoomIdx int) ([]BbiZoomRecord, error) {
  if err := bwf.checkOpen(); err != nil {
    return nil, err
  }
  if zoomIdx < 0 || zoomIdx >= len(bwf.IndexZoom) {
    return nil, fmt.Errorf("zoom level %d: %w", zoomIdx, ErrInvalidZoom)
  }
  chromId, to, err := bwf.resolveRange(seqname, from, to)
  if err != nil {
    return nil, err
  }
  size      := bwf.Genome.Lengths[chromId]
  validFrom := iMax(from, 0)
  validTo   := iMin(to, size)

  return bwf.fetchZoomRecords(zoomIdx, chromId, validFrom, validTo)
}

func (bwf *BbiFile) fetchZoomRecords(zoomIdx, chromId, from, to int) ([]BbiZoomRecord, error) {
  result := []BbiZoomRecord{}

  for _, block := range bwf.IndexZoom[zoomIdx].QueryBlocks(chromId, from, to) {
    buffer, err := block.Vertex.ReadBlock(bwf.reader, bwf.Order, bwf.Header.UncompressBufSize, block.Idx)
    if err != nil {
      return nil, err
    }
    records, err := decodeZoomBlock(buffer, bwf.Order)
    if err != nil {
      return nil, err
    }
    for _, record := range records {
      if int(record.ChromId) != chromId || int(record.End) <= from || int(record.Start) >= to {
        continue
      }
      result = append(result, record)
    }
  }
  return result, nil
}
