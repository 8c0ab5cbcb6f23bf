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

// Helpers for constructing small but complete bigWig and bigBed files
// used by the tests: main header, chromosome tree, data blocks, R tree
// index, zoom levels and total summary.

/* -------------------------------------------------------------------------- */

import "bytes"
import "compress/zlib"
import "encoding/binary"
import "math"
import "os"
import "path/filepath"
import "testing"

/* -------------------------------------------------------------------------- */

// One data block of a fixture file: the undecoded payload plus the
// region it covers, which is recorded in the R tree.
type fixtureBlock struct {
  chromId int
  from    int
  to      int
  data  []byte
}

type fixtureZoom struct {
  reduction int
  records []BbiZoomRecord
}

type bbiFixture struct {
  magic      uint32
  order      binary.ByteOrder
  compress   bool
  // build an R tree with one internal level instead of a leaf root
  twoLevel   bool
  fieldCount int
  sqlText    string
  chroms   []string
  sizes    []int
  summary    BbiSummaryStatistics
  blocks   []fixtureBlock
  zooms    []fixtureZoom
}

/* block payload encoders
 * -------------------------------------------------------------------------- */

func put32(w *bytes.Buffer, order binary.ByteOrder, v uint32) {
  b := make([]byte, 4)
  order.PutUint32(b, v)
  w.Write(b)
}

func put64(w *bytes.Buffer, order binary.ByteOrder, v uint64) {
  b := make([]byte, 8)
  order.PutUint64(b, v)
  w.Write(b)
}

func put16(w *bytes.Buffer, order binary.ByteOrder, v uint16) {
  b := make([]byte, 2)
  order.PutUint16(b, v)
  w.Write(b)
}

func putf32(w *bytes.Buffer, order binary.ByteOrder, v float64) {
  put32(w, order, math.Float32bits(float32(v)))
}

func encodeDataHeader(w *bytes.Buffer, order binary.ByteOrder, chromId, start, end, step, span, kind, items int) {
  put32(w, order, uint32(chromId))
  put32(w, order, uint32(start))
  put32(w, order, uint32(end))
  put32(w, order, uint32(step))
  put32(w, order, uint32(span))
  w.WriteByte(byte(kind))
  w.WriteByte(0)
  put16(w, order, uint16(items))
}

func encodeBedGraphBlock(order binary.ByteOrder, chromId int, intervals []BbiRawInterval) fixtureBlock {
  w := new(bytes.Buffer)
  encodeDataHeader(w, order, chromId,
    intervals[0].From, intervals[len(intervals)-1].To, 0, 0, bbiTypeBedGraph, len(intervals))
  for _, interval := range intervals {
    put32 (w, order, uint32(interval.From))
    put32 (w, order, uint32(interval.To))
    putf32(w, order, interval.Value)
  }
  return fixtureBlock{chromId, intervals[0].From, intervals[len(intervals)-1].To, w.Bytes()}
}

func encodeFixedStepBlock(order binary.ByteOrder, chromId, start, step, span int, values []float64) fixtureBlock {
  w := new(bytes.Buffer)
  end := start + (len(values)-1)*step + span
  encodeDataHeader(w, order, chromId, start, end, step, span, bbiTypeFixed, len(values))
  for _, value := range values {
    putf32(w, order, value)
  }
  return fixtureBlock{chromId, start, end, w.Bytes()}
}

func encodeVarStepBlock(order binary.ByteOrder, chromId, span int, positions []int, values []float64) fixtureBlock {
  w := new(bytes.Buffer)
  end := positions[len(positions)-1] + span
  encodeDataHeader(w, order, chromId, positions[0], end, 0, span, bbiTypeVariable, len(values))
  for i := range positions {
    put32 (w, order, uint32(positions[i]))
    putf32(w, order, values[i])
  }
  return fixtureBlock{chromId, positions[0], end, w.Bytes()}
}

func encodeBedBlock(order binary.ByteOrder, entries []BedEntry) fixtureBlock {
  w := new(bytes.Buffer)
  from := entries[0].From
  to   := entries[0].To
  for _, entry := range entries {
    put32(w, order, uint32(entry.ChromId))
    put32(w, order, uint32(entry.From))
    put32(w, order, uint32(entry.To))
    w.WriteString(entry.Rest)
    w.WriteByte(0)
    if entry.From < from {
      from = entry.From
    }
    if entry.To > to {
      to = entry.To
    }
  }
  return fixtureBlock{entries[0].ChromId, from, to, w.Bytes()}
}

func encodeZoomBlock(order binary.ByteOrder, records []BbiZoomRecord) fixtureBlock {
  w := new(bytes.Buffer)
  for _, record := range records {
    binary.Write(w, order, record)
  }
  return fixtureBlock{
    int(records[0].ChromId),
    int(records[0].Start),
    int(records[len(records)-1].End),
    w.Bytes()}
}

/* section encoders
 * -------------------------------------------------------------------------- */

func encodeChromTree(order binary.ByteOrder, chroms []string, sizes []int) []byte {
  keySize := 0
  for _, name := range chroms {
    if len(name) > keySize {
      keySize = len(name)
    }
  }
  w := new(bytes.Buffer)
  put32(w, order, CIRTREE_MAGIC)
  put32(w, order, uint32(len(chroms)))
  put32(w, order, uint32(keySize))
  put32(w, order, 8)
  put64(w, order, uint64(len(chroms)))
  put32(w, order, 0)
  put32(w, order, 0)
  // single leaf vertex
  w.WriteByte(1)
  w.WriteByte(0)
  put16(w, order, uint16(len(chroms)))
  for i, name := range chroms {
    key := make([]byte, keySize)
    copy(key, name)
    w.Write(key)
    put32(w, order, uint32(i))
    put32(w, order, uint32(sizes[i]))
  }
  return w.Bytes()
}

// Encode a data section: the number of blocks followed by the block
// payloads, compressed if requested. Returns the section bytes and the
// absolute offset and stored size of each block, given the absolute
// offset of the section itself.
func encodeDataSection(order binary.ByteOrder, base int, blocks []fixtureBlock, compress bool, withCount bool) ([]byte, []int, []int) {
  w := new(bytes.Buffer)
  if withCount {
    put64(w, order, uint64(len(blocks)))
  }
  offsets := make([]int, len(blocks))
  lengths := make([]int, len(blocks))
  for i, block := range blocks {
    data := block.data
    if compress {
      z := new(bytes.Buffer)
      zw := zlib.NewWriter(z)
      zw.Write(data)
      zw.Close()
      data = z.Bytes()
    }
    offsets[i] = base + w.Len()
    lengths[i] = len(data)
    w.Write(data)
  }
  return w.Bytes(), offsets, lengths
}

func encodeLeafVertex(w *bytes.Buffer, order binary.ByteOrder, blocks []fixtureBlock, offsets, lengths []int) {
  w.WriteByte(1)
  w.WriteByte(0)
  put16(w, order, uint16(len(blocks)))
  for i, block := range blocks {
    put32(w, order, uint32(block.chromId))
    put32(w, order, uint32(block.from))
    put32(w, order, uint32(block.chromId))
    put32(w, order, uint32(block.to))
    put64(w, order, uint64(offsets[i]))
    put64(w, order, uint64(lengths[i]))
  }
}

// Encode an R tree over the given blocks at absolute offset base. With
// twoLevel the root is an internal vertex with a single leaf child.
func encodeRTree(order binary.ByteOrder, base int, blocks []fixtureBlock, offsets, lengths []int, twoLevel bool) []byte {
  chrIdxStart, baseStart := 0, 0
  chrIdxEnd  , baseEnd   := 0, 0
  if len(blocks) > 0 {
    chrIdxStart = blocks[0].chromId
    baseStart   = blocks[0].from
    chrIdxEnd   = blocks[len(blocks)-1].chromId
    baseEnd     = blocks[len(blocks)-1].to
  }
  w := new(bytes.Buffer)
  put32(w, order, IDX_MAGIC)
  put32(w, order, 256)
  put64(w, order, uint64(len(blocks)))
  put32(w, order, uint32(chrIdxStart))
  put32(w, order, uint32(baseStart))
  put32(w, order, uint32(chrIdxEnd))
  put32(w, order, uint32(baseEnd))
  put64(w, order, 0)
  put32(w, order, 1)
  put32(w, order, 0)

  if twoLevel {
    // internal root with one child leaf directly after it
    childOffset := base + w.Len() + 4 + 1*24
    w.WriteByte(0)
    w.WriteByte(0)
    put16(w, order, 1)
    put32(w, order, uint32(chrIdxStart))
    put32(w, order, uint32(baseStart))
    put32(w, order, uint32(chrIdxEnd))
    put32(w, order, uint32(baseEnd))
    put64(w, order, uint64(childOffset))
  }
  encodeLeafVertex(w, order, blocks, offsets, lengths)
  return w.Bytes()
}

/* file assembly
 * -------------------------------------------------------------------------- */

func (fixture bbiFixture) encode() []byte {
  order := fixture.order

  maxBlockSize := 0
  for _, block := range fixture.blocks {
    if len(block.data) > maxBlockSize {
      maxBlockSize = len(block.data)
    }
  }
  for _, zoom := range fixture.zooms {
    if n := 32*len(zoom.records); n > maxBlockSize {
      maxBlockSize = n
    }
  }
  uncompressBufSize := 0
  if fixture.compress {
    uncompressBufSize = maxBlockSize
  }
  offset := 64 + 24*len(fixture.zooms)

  summaryOffset := offset
  offset += 40

  sqlOffset := 0
  if fixture.sqlText != "" {
    sqlOffset = offset
    offset   += len(fixture.sqlText) + 1
  }
  ctOffset := offset
  ctBytes  := encodeChromTree(order, fixture.chroms, fixture.sizes)
  offset   += len(ctBytes)

  dataOffset := offset
  dataBytes, offsets, lengths := encodeDataSection(order, dataOffset, fixture.blocks, fixture.compress, true)
  offset += len(dataBytes)

  indexOffset := offset
  indexBytes  := encodeRTree(order, indexOffset, fixture.blocks, offsets, lengths, fixture.twoLevel)
  offset += len(indexBytes)

  zoomDataOffset  := make([]int   , len(fixture.zooms))
  zoomIndexOffset := make([]int   , len(fixture.zooms))
  zoomDataBytes   := make([][]byte, len(fixture.zooms))
  zoomIndexBytes  := make([][]byte, len(fixture.zooms))
  for i, zoom := range fixture.zooms {
    block := encodeZoomBlock(order, zoom.records)

    zoomDataOffset[i] = offset
    zBytes, zOffsets, zLengths := encodeDataSection(order, offset, []fixtureBlock{block}, fixture.compress, false)
    zoomDataBytes[i] = zBytes
    offset += len(zBytes)

    zoomIndexOffset[i] = offset
    zoomIndexBytes [i] = encodeRTree(order, offset, []fixtureBlock{block}, zOffsets, zLengths, false)
    offset += len(zoomIndexBytes[i])
  }

  w := new(bytes.Buffer)
  // main header
  put32(w, order, fixture.magic)
  put16(w, order, 4)
  put16(w, order, uint16(len(fixture.zooms)))
  put64(w, order, uint64(ctOffset))
  put64(w, order, uint64(dataOffset))
  put64(w, order, uint64(indexOffset))
  put16(w, order, uint16(fixture.fieldCount))
  put16(w, order, uint16(fixture.fieldCount))
  put64(w, order, uint64(sqlOffset))
  put64(w, order, uint64(summaryOffset))
  put32(w, order, uint32(uncompressBufSize))
  put64(w, order, 0)
  // zoom headers
  for i, zoom := range fixture.zooms {
    put32(w, order, uint32(zoom.reduction))
    put32(w, order, 0)
    put64(w, order, uint64(zoomDataOffset[i]))
    put64(w, order, uint64(zoomIndexOffset[i]))
  }
  // total summary
  put64(w, order, uint64(fixture.summary.Valid))
  binary.Write(w, order, fixture.summary.Min)
  binary.Write(w, order, fixture.summary.Max)
  binary.Write(w, order, fixture.summary.Sum)
  binary.Write(w, order, fixture.summary.SumSquares)

  if fixture.sqlText != "" {
    w.WriteString(fixture.sqlText)
    w.WriteByte(0)
  }
  w.Write(ctBytes)
  w.Write(dataBytes)
  w.Write(indexBytes)
  for i := range fixture.zooms {
    w.Write(zoomDataBytes [i])
    w.Write(zoomIndexBytes[i])
  }
  return w.Bytes()
}

func (fixture bbiFixture) write(t *testing.T) string {
  t.Helper()
  suffix := ".bw"
  if fixture.magic == BIGBED_MAGIC {
    suffix = ".bb"
  }
  filename := filepath.Join(t.TempDir(), "fixture"+suffix)
  if err := os.WriteFile(filename, fixture.encode(), 0666); err != nil {
    t.Fatal(err)
  }
  return filename
}

/* canned fixtures
 * -------------------------------------------------------------------------- */

// A bigWig file with two chromosomes: chr1 of size 1000 carries the
// value 5 on [100, 200), chr2 of size 600 carries a ramp on [0, 100).
// One zoom level with a reduction of 10 bases summarizes chr1.
func testBigWigFixture(order binary.ByteOrder, compress bool) bbiFixture {
  ramp := make([]float64, 10)
  for i := range ramp {
    ramp[i] = float64(i)
  }
  records := []BbiZoomRecord{}
  for i := 0; i < 10; i++ {
    records = append(records, BbiZoomRecord{
      ChromId   : 0,
      Start     : uint32(100 + 10*i),
      End       : uint32(110 + 10*i),
      Valid     : 10,
      Min       : 5,
      Max       : 5,
      Sum       : 50,
      SumSquares: 250 })
  }
  summary := BbiSummaryStatistics{}
  summary.Reset()
  summary.AddSpan(5.0, 100)
  for _, v := range ramp {
    summary.AddSpan(v, 10)
  }
  return bbiFixture{
    magic   : BIGWIG_MAGIC,
    order   : order,
    compress: compress,
    chroms  : []string{"chr1", "chr2"},
    sizes   : []int{1000, 600},
    summary : summary,
    blocks  : []fixtureBlock{
      encodeBedGraphBlock (order, 0, []BbiRawInterval{{100, 200, 5.0}}),
      encodeFixedStepBlock(order, 1, 0, 10, 10, ramp) },
    zooms   : []fixtureZoom{{10, records}} }
}

// A bigBed file with overlapping features on chr1 of size 1000.
func testBigBedFixture(order binary.ByteOrder, compress bool) bbiFixture {
  entries := []BedEntry{
    {0, 100, 200, "feature1\t100"},
    {0, 150, 250, "feature2\t200"},
    {0, 300, 400, "feature3\t300"} }

  summary := BbiSummaryStatistics{}
  summary.Reset()
  summary.AddSpan(1.0, 50)
  summary.AddSpan(2.0, 50)
  summary.AddSpan(1.0, 50)
  summary.AddSpan(1.0, 100)

  return bbiFixture{
    magic     : BIGBED_MAGIC,
    order     : order,
    compress  : compress,
    fieldCount: 5,
    chroms    : []string{"chr1"},
    sizes     : []int{1000},
    summary   : summary,
    blocks    : []fixtureBlock{encodeBedBlock(order, entries)} }
}
