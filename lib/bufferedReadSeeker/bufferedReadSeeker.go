/* Copyright (C) 2017-2020 Philipp Benner
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

package bufferedReadSeeker

/* -------------------------------------------------------------------------- */

// Read-ahead buffer for io.ReadSeeker sources with expensive reads, such
// as HTTP range requests. Small reads are served from an internal window
// over the source; reads larger than the window bypass it.

/* -------------------------------------------------------------------------- */

import   "fmt"
import   "io"

/* -------------------------------------------------------------------------- */

type BufferedReadSeeker struct {
  reader     io.ReadSeeker
  // absolute position of the buffer window in the source
  position   int64
  // read offset within the buffer window
  offset     int64
  // number of valid bytes in the buffer window
  bufsize    int64
  buffer   []byte
}

/* -------------------------------------------------------------------------- */

func New(reader io.ReadSeeker, bufsize int) (*BufferedReadSeeker, error) {
  if bufsize <= 0 {
    return nil, fmt.Errorf("invalid buffer size")
  }
  return &BufferedReadSeeker{reader, 0, 0, 0, make([]byte, bufsize)}, nil
}

/* -------------------------------------------------------------------------- */

// Move the window to the end of the current one and fill it with new
// data from the source.
func (reader *BufferedReadSeeker) fillBuffer() error {
  next := reader.position + reader.bufsize
  if _, err := reader.reader.Seek(next, io.SeekStart); err != nil {
    return err
  }
  n, err := reader.reader.Read(reader.buffer)
  if n == 0 && err != nil {
    return err
  }
  reader.position = next
  reader.bufsize  = int64(n)
  reader.offset   = 0
  return nil
}

func (reader *BufferedReadSeeker) Read(p []byte) (int, error) {
  if len(p) > len(reader.buffer) {
    // more bytes requested than can be buffered, read directly from
    // the source at the logical position
    if _, err := reader.reader.Seek(reader.position+reader.offset, io.SeekStart); err != nil {
      return 0, err
    }
    n, err := io.ReadFull(reader.reader, p)
    reader.position += reader.offset + int64(n)
    reader.offset    = 0
    reader.bufsize   = 0
    if err == io.ErrUnexpectedEOF {
      err = io.EOF
    }
    return n, err
  }
  if k := int64(len(p)); k <= reader.bufsize - reader.offset {
    // buffer contains requested bytes
    copy(p, reader.buffer[reader.offset:reader.offset+k])
    reader.offset += k
  } else {
    // copy what is left in the buffer
    n := reader.bufsize - reader.offset
    copy(p, reader.buffer[reader.offset:reader.offset+n])
    // fill buffer with new data
    if err := reader.fillBuffer(); err != nil {
      return int(n), err
    }
    // copy remaining bytes
    m := k - n
    if m > reader.bufsize {
      m = reader.bufsize
    }
    copy(p[n:], reader.buffer[0:m])
    reader.offset = m
    if n+m < k {
      return int(n+m), io.EOF
    }
  }
  return len(p), nil
}

func (reader *BufferedReadSeeker) Seek(offset int64, whence int) (int64, error) {
  switch whence {
  case io.SeekStart:
  case io.SeekCurrent:
    offset = reader.position + reader.offset + offset
  case io.SeekEnd:
    end, err := reader.reader.Seek(0, io.SeekEnd)
    if err != nil {
      return 0, err
    }
    offset = end + offset
  default:
    return 0, fmt.Errorf("invalid whence value")
  }
  if offset >= reader.position && offset <= reader.position + reader.bufsize {
    // target position falls into the current window
    reader.offset = offset - reader.position
  } else {
    if _, err := reader.reader.Seek(offset, io.SeekStart); err != nil {
      return 0, err
    }
    reader.position = offset
    reader.offset   = 0
    reader.bufsize  = 0
  }
  return offset, nil
}

func (reader *BufferedReadSeeker) SetBufSize(n int) error {
  if n <= 0 {
    return fmt.Errorf("invalid buffer size")
  }
  if n <= cap(reader.buffer) {
    reader.buffer = reader.buffer[0:n]
  } else {
    reader.buffer = make([]byte, n)
  }
  reader.bufsize = 0
  reader.offset  = 0
  return nil
}
