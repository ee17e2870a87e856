package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ccollicutt/acclog/pkg/record"
)

// MaxLineSize is the longest line that is parsed. Longer lines are reported
// as errors with ErrLineTooLong and reading carries on after them.
const MaxLineSize = 1024 * 1024

// tooLongPrefix is how much of an overlong line is kept as its raw text.
const tooLongPrefix = 4096

// ErrLineTooLong is the cause of the error reported for a line longer than
// MaxLineSize.
var ErrLineTooLong = errors.New("line too long")

// Line is one newline-stripped line read from a file.
type Line struct {
	Text string

	// TooLong marks a line over MaxLineSize. Text then holds only its start.
	TooLong bool
}

// lineBuffer collects the chunks of one line, keeping only a prefix once the
// line grows past MaxLineSize.
type lineBuffer struct {
	buf  []byte
	long bool
}

func (b *lineBuffer) write(p []byte) {
	if b.long {
		return
	}
	b.buf = append(b.buf, p...)
	// One extra byte leaves room for the newline.
	if len(b.buf) > MaxLineSize+1 {
		b.truncate()
	}
}

func (b *lineBuffer) truncate() {
	b.long = true
	b.buf = append([]byte(nil), b.buf[:tooLongPrefix]...)
}

func (b *lineBuffer) pending() bool {
	return b.long || len(b.buf) > 0
}

// take returns the collected line and resets the buffer.
func (b *lineBuffer) take() Line {
	b.buf = bytes.TrimSuffix(b.buf, []byte{'\n'})
	if !b.long && len(b.buf) > MaxLineSize {
		b.truncate()
	}
	text := bytes.TrimSuffix(b.buf, []byte{'\r'})
	l := Line{Text: string(text), TooLong: b.long}
	b.buf = b.buf[:0]
	b.long = false
	return l
}

// lineReader splits a stream into Lines. An overlong line is cut short and
// read through to its newline, so the lines after it are still returned.
type lineReader struct {
	r   *bufio.Reader
	cur lineBuffer
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line, or io.EOF once the stream is exhausted. A final
// line without a newline is still returned.
func (lr *lineReader) next() (Line, error) {
	for {
		chunk, err := lr.r.ReadSlice('\n')
		lr.cur.write(chunk)
		switch {
		case err == nil:
			return lr.cur.take(), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !lr.cur.pending() {
				return Line{}, io.EOF
			}
			return lr.cur.take(), nil
		default:
			return Line{}, err
		}
	}
}

// FileSource implements Source for reading from log files. Files ending in
// .gz or .zst are decompressed on the fly.
type FileSource struct {
	files  []string
	parser *Parser

	currentFile   *os.File
	currentReader io.ReadCloser
	currentLines  *lineReader
	currentSource string
	currentLine   int
	fileIndex     int
}

// NewFileSource creates a Source that reads from the given files in order.
// A nil parser means the default parser.
func NewFileSource(files []string, p *Parser) *FileSource {
	if p == nil {
		p = defaultParser
	}
	return &FileSource{
		files:     files,
		parser:    p,
		fileIndex: -1,
	}
}

// Next returns the result for the next line.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*Result, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentLines == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		line, err := s.currentLines.next()
		if err == nil {
			s.currentLine++
			res := s.parser.ParseLineResult(line, record.Origin{
				Source:  s.currentSource,
				LineNum: s.currentLine,
			})
			return &res, nil
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading %s: %w", s.currentSource, err)
		}

		// Current file exhausted, try next
		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}

	r, err := decompress(path, f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("opening log file %s: %w", path, err)
	}

	s.currentFile = f
	s.currentReader = r
	s.currentLines = newLineReader(r)
	s.currentSource = path
	s.currentLine = 0

	return nil
}

func (s *FileSource) closeCurrentFile() error {
	s.currentLines = nil
	if s.currentReader != nil {
		_ = s.currentReader.Close()
		s.currentReader = nil
	}
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}

// ReadLines returns the lines of a possibly compressed file, at most limit
// when limit > 0.
func ReadLines(path string, limit int) ([]Line, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	defer f.Close()

	r, err := decompress(path, f)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	defer r.Close()

	var lines []Line
	lr := newLineReader(r)
	for limit <= 0 || len(lines) < limit {
		line, err := lr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return lines, fmt.Errorf("reading %s: %w", path, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// decompress wraps f according to the file extension.
func decompress(path string, f io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return io.NopCloser(f), nil
	}
}
