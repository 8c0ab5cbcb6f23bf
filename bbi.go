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

// Read-side implementation of the Big Binary Indexed (bbi) container
// format underlying bigWig and bigBed files: main header, chromosome
// B+ tree, R tree spatial index, and the data/zoom block codecs.

/* -------------------------------------------------------------------------- */

import "bytes"
import "compress/zlib"
import "encoding/binary"
import "fmt"
import "io"
import "io/ioutil"
import "math"
import "strings"

/* -------------------------------------------------------------------------- */

const CIRTREE_MAGIC = 0x78ca8c91
const     IDX_MAGIC = 0x2468ace0
const  BIGWIG_MAGIC = 0x888FFC26
const  BIGBED_MAGIC = 0x8789F2EB

/* -------------------------------------------------------------------------- */

func readAt(reader io.ReadSeeker, order binary.ByteOrder, offset int64, data interface{}) error {
  currentPosition, _ := reader.Seek(0, io.SeekCurrent)
  if _, err := reader.Seek(offset, io.SeekStart); err != nil {
    return err
  }
  if err := binary.Read(reader, order, data); err != nil {
    return err
  }
  if _, err := reader.Seek(currentPosition, io.SeekStart); err != nil {
    return err
  }
  return nil
}

func uncompressSlice(data []byte) ([]byte, error) {
  b := bytes.NewReader(data)
  z, err := zlib.NewReader(b)
  if err != nil {
    return nil, err
  }
  defer z.Close()

  return ioutil.ReadAll(z)
}

/* summary statistics
 * -------------------------------------------------------------------------- */

// Atomic aggregate over a genomic span. Valid is the number of bases
// with data; it is kept as float64 so that zoom records can be sliced
// proportionally at bin boundaries.
type BbiSummaryStatistics struct {
  Valid      float64
  Min        float64
  Max        float64
  Sum        float64
  SumSquares float64
}

func (obj *BbiSummaryStatistics) Reset() {
  obj.Valid      = 0.0
  obj.Min        = math.Inf( 1)
  obj.Max        = math.Inf(-1)
  obj.Sum        = 0.0
  obj.SumSquares = 0.0
}

// Add a single observation.
func (obj *BbiSummaryStatistics) AddValue(x float64) {
  if math.IsNaN(x) {
    return
  }
  obj.Valid      += 1.0
  obj.Min         = math.Min(obj.Min, x)
  obj.Max         = math.Max(obj.Max, x)
  obj.Sum        += x
  obj.SumSquares += x*x
}

// Add n bases of constant value x.
func (obj *BbiSummaryStatistics) AddSpan(x float64, n int) {
  if math.IsNaN(x) || n <= 0 {
    return
  }
  obj.Valid      += float64(n)
  obj.Min         = math.Min(obj.Min, x)
  obj.Max         = math.Max(obj.Max, x)
  obj.Sum        += float64(n)*x
  obj.SumSquares += float64(n)*x*x
}

// Add the given fraction of another aggregate, assuming uniform density
// within it. Min and max carry over unscaled.
func (obj *BbiSummaryStatistics) AddScaled(x BbiSummaryStatistics, fraction float64) {
  if fraction <= 0.0 || x.Valid == 0.0 {
    return
  }
  obj.Valid      += fraction*x.Valid
  obj.Min         = math.Min(obj.Min, x.Min)
  obj.Max         = math.Max(obj.Max, x.Max)
  obj.Sum        += fraction*x.Sum
  obj.SumSquares += fraction*x.SumSquares
}

/* zoom summary records
 * -------------------------------------------------------------------------- */

// On-disk zoom summary record (32 bytes). Records of one zoom level and
// chromosome are sorted by start position and do not overlap.
type BbiZoomRecord struct {
  ChromId    uint32
  Start      uint32
  End        uint32
  Valid      uint32
  Min        float32
  Max        float32
  Sum        float32
  SumSquares float32
}

func (record BbiZoomRecord) Statistics() BbiSummaryStatistics {
  return BbiSummaryStatistics{
    Valid     : float64(record.Valid),
    Min       : float64(record.Min),
    Max       : float64(record.Max),
    Sum       : float64(record.Sum),
    SumSquares: float64(record.SumSquares) }
}

// Decode a zoom data block into its summary records.
func decodeZoomBlock(buffer []byte, order binary.ByteOrder) ([]BbiZoomRecord, error) {
  if len(buffer) % 32 != 0 {
    return nil, fmt.Errorf("zoom data block has invalid length")
  }
  records := make([]BbiZoomRecord, len(buffer)/32)
  reader  := bytes.NewReader(buffer)
  for i := 0; i < len(records); i++ {
    if err := binary.Read(reader, order, &records[i]); err != nil {
      return nil, err
    }
  }
  return records, nil
}

/* raw data blocks
 * -------------------------------------------------------------------------- */

// Half-open genomic span with a constant value. Intervals produced by the
// fetchers are sorted by start position and do not overlap.
type BbiRawInterval struct {
  From  int
  To    int
  Value float64
}

type BbiDataHeader struct {
  ChromId   uint32
  Start     uint32
  End       uint32
  Step      uint32
  Span      uint32
  Type      byte
  Reserved  byte
  ItemCount uint16
}

func (header *BbiDataHeader) ReadBuffer(buffer []byte, order binary.ByteOrder) {
  header.ChromId   = order.Uint32(buffer[ 0: 4])
  header.Start     = order.Uint32(buffer[ 4: 8])
  header.End       = order.Uint32(buffer[ 8:12])
  header.Step      = order.Uint32(buffer[12:16])
  header.Span      = order.Uint32(buffer[16:20])
  header.Type      = buffer[20]
  header.Reserved  = buffer[21]
  header.ItemCount = order.Uint16(buffer[22:24])
}

const (
  bbiTypeBedGraph = 1
  bbiTypeVariable = 2
  bbiTypeFixed    = 3
)

// Decode a bigWig data block into its intervals. All three encodings are
// supported: bedGraph (type 1), variable step (type 2) and fixed step
// (type 3).
func decodeRawBlock(buffer []byte, order binary.ByteOrder) (BbiDataHeader, []BbiRawInterval, error) {
  header := BbiDataHeader{}
  if len(buffer) < 24 {
    return header, nil, fmt.Errorf("data block is shorter than 24 bytes")
  }
  header.ReadBuffer(buffer, order)
  buffer = buffer[24:]

  intervals := []BbiRawInterval{}

  switch header.Type {
  default:
    return header, nil, fmt.Errorf("unsupported data block type `%d'", header.Type)
  case bbiTypeBedGraph:
    if len(buffer) % 12 != 0 {
      return header, nil, fmt.Errorf("bedGraph data block has invalid length")
    }
    for i := 0; i < len(buffer); i += 12 {
      from  := int(order.Uint32(buffer[i+0:i+ 4]))
      to    := int(order.Uint32(buffer[i+4:i+ 8]))
      value := float64(math.Float32frombits(order.Uint32(buffer[i+8:i+12])))
      intervals = append(intervals, BbiRawInterval{from, to, value})
    }
  case bbiTypeVariable:
    if len(buffer) % 8 != 0 {
      return header, nil, fmt.Errorf("variable step data block has invalid length")
    }
    for i := 0; i < len(buffer); i += 8 {
      from  := int(order.Uint32(buffer[i+0:i+4]))
      value := float64(math.Float32frombits(order.Uint32(buffer[i+4:i+8])))
      intervals = append(intervals, BbiRawInterval{from, from + int(header.Span), value})
    }
  case bbiTypeFixed:
    if len(buffer) % 4 != 0 {
      return header, nil, fmt.Errorf("fixed step data block has invalid length")
    }
    for i := 0; i < len(buffer); i += 4 {
      from  := int(header.Start) + i/4*int(header.Step)
      value := float64(math.Float32frombits(order.Uint32(buffer[i:i+4])))
      intervals = append(intervals, BbiRawInterval{from, from + int(header.Span), value})
    }
  }
  return header, intervals, nil
}

/* bigBed data blocks
 * -------------------------------------------------------------------------- */

// Stored bigBed record: a genomic span plus the remaining tab-separated
// columns as written to the file.
type BedEntry struct {
  ChromId int
  From    int
  To      int
  Rest    string
}

// Decode a bigBed data block. Each record is three uint32 values followed
// by a NUL terminated string holding the extra columns.
func decodeBedBlock(buffer []byte, order binary.ByteOrder) ([]BedEntry, error) {
  entries := []BedEntry{}

  for len(buffer) > 0 {
    if len(buffer) < 13 {
      return nil, fmt.Errorf("bigBed data block has invalid length")
    }
    entry := BedEntry{}
    entry.ChromId = int(order.Uint32(buffer[0: 4]))
    entry.From    = int(order.Uint32(buffer[4: 8]))
    entry.To      = int(order.Uint32(buffer[8:12]))
    k := bytes.IndexByte(buffer[12:], 0)
    if k < 0 {
      return nil, fmt.Errorf("bigBed record is not NUL terminated")
    }
    entry.Rest = string(buffer[12:12+k])
    buffer     = buffer[12+k+1:]
    entries    = append(entries, entry)
  }
  return entries, nil
}

/* chromosome B+ tree
 * -------------------------------------------------------------------------- */

type BData struct {
  KeySize       uint32
  ValueSize     uint32
  ItemsPerBlock uint32
  ItemCount     uint64

  Keys   [][]byte
  Values [][]byte
}

func (data *BData) readVertexLeaf(reader io.ReadSeeker, order binary.ByteOrder) error {
  var nVals uint16

  if err := binary.Read(reader, order, &nVals); err != nil {
    return err
  }
  for i := 0; i < int(nVals); i++ {
    key   := make([]byte, data.KeySize)
    value := make([]byte, data.ValueSize)
    if err := binary.Read(reader, order, &key); err != nil {
      return err
    }
    if err := binary.Read(reader, order, &value); err != nil {
      return err
    }
    data.Keys   = append(data.Keys,   key)
    data.Values = append(data.Values, value)
  }
  return nil
}

func (data *BData) readVertexIndex(reader io.ReadSeeker, order binary.ByteOrder) error {
  var nVals    uint16
  var position uint64

  key := make([]byte, data.KeySize)

  if err := binary.Read(reader, order, &nVals); err != nil {
    return err
  }
  for i := 0; i < int(nVals); i++ {
    if err := binary.Read(reader, order, &key); err != nil {
      return err
    }
    if err := binary.Read(reader, order, &position); err != nil {
      return err
    }
    // save current position and jump to child vertex
    currentPosition, _ := reader.Seek(0, io.SeekCurrent)
    if _, err := reader.Seek(int64(position), io.SeekStart); err != nil {
      return err
    }
    if err := data.readVertex(reader, order); err != nil {
      return err
    }
    if _, err := reader.Seek(currentPosition, io.SeekStart); err != nil {
      return err
    }
  }
  return nil
}

func (data *BData) readVertex(reader io.ReadSeeker, order binary.ByteOrder) error {
  var isLeaf  uint8
  var padding uint8

  if err := binary.Read(reader, order, &isLeaf); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &padding); err != nil {
    return err
  }
  if isLeaf != 0 {
    return data.readVertexLeaf(reader, order)
  } else {
    return data.readVertexIndex(reader, order)
  }
}

func (data *BData) Read(reader io.ReadSeeker, order binary.ByteOrder) error {
  var magic uint32

  if err := binary.Read(reader, order, &magic); err != nil {
    return err
  }
  if magic != CIRTREE_MAGIC {
    return fmt.Errorf("invalid chromosome tree")
  }
  if err := binary.Read(reader, order, &data.ItemsPerBlock); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &data.KeySize); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &data.ValueSize); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &data.ItemCount); err != nil {
    return err
  }
  // padding
  if err := binary.Read(reader, order, &magic); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &magic); err != nil {
    return err
  }
  return data.readVertex(reader, order)
}

// Convert the chromosome tree into a genome in chromosome-id order.
func (data *BData) Genome(order binary.ByteOrder) (Genome, error) {
  seqnames := make([]string, len(data.Keys))
  lengths  := make([]int,    len(data.Keys))

  for i := 0; i < len(data.Keys); i++ {
    if len(data.Values[i]) != 8 {
      return Genome{}, fmt.Errorf("invalid chromosome list")
    }
    idx := int(order.Uint32(data.Values[i][0:4]))
    if idx < 0 || idx >= len(data.Keys) {
      return Genome{}, fmt.Errorf("invalid chromosome index")
    }
    seqnames[idx] = strings.TrimRight(string(data.Keys[i]), "\x00")
    lengths [idx] = int(order.Uint32(data.Values[i][4:8]))
  }
  return NewGenome(seqnames, lengths), nil
}

/* R tree spatial index
 * -------------------------------------------------------------------------- */

type RTree struct {
  BlockSize     uint32
  NItems        uint64
  ChrIdxStart   uint32
  BaseStart     uint32
  ChrIdxEnd     uint32
  BaseEnd       uint32
  IdxSize       uint64
  NItemsPerSlot uint32
  Root          *RVertex
}

type RVertex struct {
  IsLeaf      uint8
  NChildren   uint16
  ChrIdxStart []uint32
  BaseStart   []uint32
  ChrIdxEnd   []uint32
  BaseEnd     []uint32
  DataOffset  []uint64
  Sizes       []uint64
  Children    []*RVertex
}

func (vertex *RVertex) Read(reader io.ReadSeeker, order binary.ByteOrder) error {
  var padding uint8

  if err := binary.Read(reader, order, &vertex.IsLeaf); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &padding); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &vertex.NChildren); err != nil {
    return err
  }
  vertex.ChrIdxStart = make([]uint32, vertex.NChildren)
  vertex.BaseStart   = make([]uint32, vertex.NChildren)
  vertex.ChrIdxEnd   = make([]uint32, vertex.NChildren)
  vertex.BaseEnd     = make([]uint32, vertex.NChildren)
  vertex.DataOffset  = make([]uint64, vertex.NChildren)
  if vertex.IsLeaf != 0 {
    vertex.Sizes     = make([]uint64, vertex.NChildren)
  } else {
    vertex.Children  = make([]*RVertex, vertex.NChildren)
  }

  for i := 0; i < int(vertex.NChildren); i++ {
    if err := binary.Read(reader, order, &vertex.ChrIdxStart[i]); err != nil {
      return err
    }
    if err := binary.Read(reader, order, &vertex.BaseStart[i]); err != nil {
      return err
    }
    if err := binary.Read(reader, order, &vertex.ChrIdxEnd[i]); err != nil {
      return err
    }
    if err := binary.Read(reader, order, &vertex.BaseEnd[i]); err != nil {
      return err
    }
    if err := binary.Read(reader, order, &vertex.DataOffset[i]); err != nil {
      return err
    }
    if vertex.IsLeaf != 0 {
      if err := binary.Read(reader, order, &vertex.Sizes[i]); err != nil {
        return err
      }
    }
  }
  if vertex.IsLeaf == 0 {
    for i := 0; i < int(vertex.NChildren); i++ {
      if _, err := reader.Seek(int64(vertex.DataOffset[i]), io.SeekStart); err != nil {
        return err
      }
      vertex.Children[i] = new(RVertex)
      if err := vertex.Children[i].Read(reader, order); err != nil {
        return err
      }
    }
  }
  return nil
}

// Read a leaf data block, decompressing it if the file is compressed.
func (vertex *RVertex) ReadBlock(reader io.ReadSeeker, order binary.ByteOrder, uncompressBufSize uint32, i int) ([]byte, error) {
  var err error
  block := make([]byte, vertex.Sizes[i])
  if err = readAt(reader, order, int64(vertex.DataOffset[i]), &block); err != nil {
    return nil, err
  }
  if uncompressBufSize != 0 {
    if block, err = uncompressSlice(block); err != nil {
      return nil, err
    }
  }
  return block, nil
}

func (tree *RTree) Read(reader io.ReadSeeker, order binary.ByteOrder) error {
  var magic   uint32
  var padding uint32

  if err := binary.Read(reader, order, &magic); err != nil {
    return err
  }
  if magic != IDX_MAGIC {
    return fmt.Errorf("invalid bbi index")
  }
  if err := binary.Read(reader, order, &tree.BlockSize); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &tree.NItems); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &tree.ChrIdxStart); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &tree.BaseStart); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &tree.ChrIdxEnd); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &tree.BaseEnd); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &tree.IdxSize); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &tree.NItemsPerSlot); err != nil {
    return err
  }
  if err := binary.Read(reader, order, &padding); err != nil {
    return err
  }
  tree.Root = new(RVertex)

  return tree.Root.Read(reader, order)
}

/* R tree traversal
 * -------------------------------------------------------------------------- */

// Position of one leaf data block in the tree.
type RTreeBlock struct {
  Vertex *RVertex
  Idx    int
}

// Collect the leaf blocks possibly overlapping the query region
// [from, to) on the chromosome with the given id, in file order.
func (tree *RTree) QueryBlocks(chromId, from, to int) []RTreeBlock {
  blocks := []RTreeBlock{}
  if tree.Root != nil {
    blocks = queryVertex(tree.Root, chromId, from, to, blocks)
  }
  return blocks
}

func overlapsRange(chrIdxStart, baseStart, chrIdxEnd, baseEnd uint32, chromId, from, to int) bool {
  if int(chrIdxEnd) < chromId || (int(chrIdxEnd) == chromId && int(baseEnd) <= from) {
    return false
  }
  if int(chrIdxStart) > chromId || (int(chrIdxStart) == chromId && int(baseStart) >= to) {
    return false
  }
  return true
}

func queryVertex(vertex *RVertex, chromId, from, to int, blocks []RTreeBlock) []RTreeBlock {
  for i := 0; i < int(vertex.NChildren); i++ {
    if !overlapsRange(vertex.ChrIdxStart[i], vertex.BaseStart[i], vertex.ChrIdxEnd[i], vertex.BaseEnd[i], chromId, from, to) {
      continue
    }
    if vertex.IsLeaf != 0 {
      blocks = append(blocks, RTreeBlock{vertex, i})
    } else {
      blocks = queryVertex(vertex.Children[i], chromId, from, to, blocks)
    }
  }
  return blocks
}

/* file header
 * -------------------------------------------------------------------------- */

type BbiHeaderZoom struct {
  ReductionLevel uint32
  Reserved       uint32
  DataOffset     uint64
  IndexOffset    uint64
}

type BbiHeader struct {
  Magic             uint32
  Version           uint16
  ZoomLevels        uint16
  CtOffset          uint64
  DataOffset        uint64
  IndexOffset       uint64
  FieldCount        uint16
  DefinedFieldCount uint16
  SqlOffset         uint64
  SummaryOffset     uint64
  UncompressBufSize uint32
  ExtensionOffset   uint64
  NBlocks           uint64
  // total summary, present if SummaryOffset > 0
  NBasesCovered     uint64
  MinVal            float64
  MaxVal            float64
  SumData           float64
  SumSquared        float64
  ZoomHeaders     []BbiHeaderZoom
}

// Classify the first four bytes of a bbi resource. Both byte orders are
// accepted; the detected order and magic are returned.
func readMagic(reader io.ReadSeeker) (uint32, binary.ByteOrder, error) {
  buffer := make([]byte, 4)

  if _, err := reader.Seek(0, io.SeekStart); err != nil {
    return 0, nil, err
  }
  if _, err := io.ReadFull(reader, buffer); err != nil {
    return 0, nil, err
  }
  if magic := binary.LittleEndian.Uint32(buffer); magic == BIGWIG_MAGIC || magic == BIGBED_MAGIC {
    return magic, binary.LittleEndian, nil
  }
  if magic := binary.BigEndian.Uint32(buffer); magic == BIGWIG_MAGIC || magic == BIGBED_MAGIC {
    return magic, binary.BigEndian, nil
  }
  return 0, nil, fmt.Errorf("invalid magic number: %w", ErrNoBbi)
}

// Parse the fixed header, the zoom headers, the total summary and the
// number of data blocks. The byte order is detected from the magic
// number and returned.
func (header *BbiHeader) Read(reader io.ReadSeeker) (binary.ByteOrder, error) {
  magic, order, err := readMagic(reader)
  if err != nil {
    return nil, err
  }
  header.Magic = magic

  if err := binary.Read(reader, order, &header.Version); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.ZoomLevels); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.CtOffset); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.DataOffset); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.IndexOffset); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.FieldCount); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.DefinedFieldCount); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.SqlOffset); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.SummaryOffset); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.UncompressBufSize); err != nil {
    return order, err
  }
  if err := binary.Read(reader, order, &header.ExtensionOffset); err != nil {
    return order, err
  }
  // zoom levels
  header.ZoomHeaders = make([]BbiHeaderZoom, header.ZoomLevels)
  for i := 0; i < int(header.ZoomLevels); i++ {
    if err := binary.Read(reader, order, &header.ZoomHeaders[i]); err != nil {
      return order, err
    }
  }
  // total summary
  if header.SummaryOffset > 0 {
    if _, err := reader.Seek(int64(header.SummaryOffset), io.SeekStart); err != nil {
      return order, err
    }
    if err := binary.Read(reader, order, &header.NBasesCovered); err != nil {
      return order, err
    }
    if err := binary.Read(reader, order, &header.MinVal); err != nil {
      return order, err
    }
    if err := binary.Read(reader, order, &header.MaxVal); err != nil {
      return order, err
    }
    if err := binary.Read(reader, order, &header.SumData); err != nil {
      return order, err
    }
    if err := binary.Read(reader, order, &header.SumSquared); err != nil {
      return order, err
    }
  }
  // number of data blocks
  if header.DataOffset > 0 {
    if err := readAt(reader, order, int64(header.DataOffset), &header.NBlocks); err != nil {
      return order, err
    }
  }
  return order, nil
}

// Read the NUL terminated AutoSql text stored at SqlOffset. Returns the
// empty string if no schema is embedded.
func (header *BbiHeader) ReadSqlText(reader io.ReadSeeker) (string, error) {
  if header.SqlOffset == 0 {
    return "", nil
  }
  if _, err := reader.Seek(int64(header.SqlOffset), io.SeekStart); err != nil {
    return "", err
  }
  text := []byte{}
  buffer := make([]byte, 256)
  for {
    n, err := reader.Read(buffer)
    if n > 0 {
      if k := bytes.IndexByte(buffer[:n], 0); k >= 0 {
        return string(append(text, buffer[:k]...)), nil
      }
      text = append(text, buffer[:n]...)
    }
    if err != nil {
      if err == io.EOF {
        return string(text), nil
      }
      return "", err
    }
  }
}
