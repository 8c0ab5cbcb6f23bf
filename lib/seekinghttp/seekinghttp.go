package seekinghttp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
)

// SeekingHTTP uses a series of HTTP GETs with Range headers
// to implement io.ReadSeeker and io.ReaderAt.
type SeekingHTTP struct {
	URL        string
	Client     *http.Client
	Debug      bool
	url        *url.URL
	offset     int64
	size       int64
	last       *bytes.Buffer
	lastOffset int64
}

// Compile-time check of interface implementations.
var _ io.ReadSeeker = (*SeekingHTTP)(nil)
var _ io.ReaderAt = (*SeekingHTTP)(nil)

// New initializes a SeekingHTTP for the given URL.
// The SeekingHTTP.Client field may be set before the first call
// to Read or Seek.
func New(url string) *SeekingHTTP {
	return &SeekingHTTP{
		URL:    url,
		offset: 0,
		size:   -1,
	}
}

func (s *SeekingHTTP) newreq(method string) (*http.Request, error) {
	var err error
	if s.url == nil {
		s.url, err = url.Parse(s.URL)
		if err != nil {
			return nil, err
		}
	}
	return &http.Request{
		Method:     method,
		URL:        s.url,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       nil,
		Host:       s.url.Host,
	}, nil
}

func fmtRange(from, l int64) string {
	var to int64
	if l == 0 {
		to = from
	} else {
		to = from + (l - 1)
	}
	return fmt.Sprintf("bytes=%v-%v", from, to)
}

// ReadAt reads len(buf) bytes into buf starting at offset off.
func (s *SeekingHTTP) ReadAt(buf []byte, off int64) (int, error) {
	if s.Debug {
		log.Printf("ReadAt len %v off %v", len(buf), off)
	}
	if s.last != nil && off >= s.lastOffset {
		end := off + int64(len(buf))
		if end <= s.lastOffset+int64(s.last.Len()) {
			start := off - s.lastOffset
			if s.Debug {
				log.Printf("cache hit: range (%v-%v) is within cache (%v-%v)", off, end, s.lastOffset, s.lastOffset+int64(s.last.Len()))
			}
			copy(buf, s.last.Bytes()[start:end-s.lastOffset])
			return len(buf), nil
		}
	}
	if s.Debug {
		if s.last != nil {
			log.Printf("cache miss: range (%v-%v) is NOT within cache (%v-%v)", off, off+int64(len(buf)), s.lastOffset, s.lastOffset+int64(s.last.Len()))
		} else {
			log.Printf("cache miss: cache empty")
		}
	}

	req, err := s.newreq("GET")
	if err != nil {
		return 0, err
	}

	// Fetch more than what they asked for to reduce round-trips
	wanted := 10 * len(buf)
	rng := fmtRange(off, int64(wanted))
	req.Header.Add("Range", rng)

	if s.last == nil {
		s.last = &bytes.Buffer{}
	} else {
		// Bring the cache back to zero bytes, but keep the
		// underlying []byte, since we'll reuse it right away.
		s.last.Reset()
	}

	if s.Debug {
		log.Println("Start HTTP GET with Range:", rng)
	}
	if err := s.init(); err != nil {
		return 0, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	if s.Debug {
		log.Println("HTTP ok.")
	}
	if _, err := s.last.ReadFrom(resp.Body); err != nil {
		return 0, err
	}
	s.lastOffset = off
	n := copy(buf, s.last.Bytes())
	if n < len(buf) {
		// The server sent less than requested, so the requested range
		// extends past the end of the resource.
		return n, io.EOF
	}
	return n, nil
}

// If they did not give us an HTTP Client, use the default one.
func (s *SeekingHTTP) init() error {
	if s.Client == nil {
		s.Client = http.DefaultClient
	}
	return nil
}

func (s *SeekingHTTP) Read(buf []byte) (int, error) {
	if s.Debug {
		log.Printf("got read len %v", len(buf))
	}
	n, err := s.ReadAt(buf, s.offset)
	s.offset += int64(n)

	return n, err
}

// Seek sets the offset for the next Read.
func (s *SeekingHTTP) Seek(offset int64, whence int) (int64, error) {
	if s.Debug {
		log.Printf("got seek %v %v", offset, whence)
	}
	switch whence {
	case io.SeekStart:
		s.offset = offset
	case io.SeekCurrent:
		s.offset += offset
	case io.SeekEnd:
		size, err := s.Size()
		if err != nil {
			return 0, err
		}
		s.offset = size + offset
	default:
		return 0, errors.New("invalid whence value")
	}
	return s.offset, nil
}

// Size uses an HTTP HEAD to find out how many bytes are available in total.
func (s *SeekingHTTP) Size() (int64, error) {
	if s.size >= 0 {
		return s.size, nil
	}
	if err := s.init(); err != nil {
		return 0, err
	}

	req, err := s.newreq("HEAD")
	if err != nil {
		return 0, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, errors.New("no content length for Size()")
	}
	if s.Debug {
		log.Printf("size %v", resp.ContentLength)
	}
	s.size = resp.ContentLength
	return resp.ContentLength, nil
}
