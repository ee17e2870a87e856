package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ccollicutt/acclog/pkg/record"
)

// FollowSource tails a single growing log file. Next blocks until a complete
// line is appended or ctx ends; it never returns io.EOF. The file is reopened
// from the start when it is recreated (log rotation). Line numbers count from
// where reading began.
type FollowSource struct {
	path      string
	parser    *Parser
	fromStart bool

	watcher *fsnotify.Watcher
	file    *os.File
	reader  *bufio.Reader
	partial lineBuffer
	line    int
}

// NewFollowSource creates a tailing source for path. With fromStart the
// existing content is emitted first; otherwise only lines appended after the
// first call to Next are.
func NewFollowSource(path string, p *Parser, fromStart bool) *FollowSource {
	if p == nil {
		p = defaultParser
	}
	return &FollowSource{path: path, parser: p, fromStart: fromStart}
}

// Next returns the result for the next appended line.
func (s *FollowSource) Next(ctx context.Context) (*Result, error) {
	if s.watcher == nil {
		if err := s.start(); err != nil {
			return nil, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s.reader != nil {
			chunk, err := s.reader.ReadSlice('\n')
			s.partial.write(chunk)
			if err == nil {
				s.line++
				res := s.parser.ParseLineResult(s.partial.take(), record.Origin{Source: s.path, LineNum: s.line})
				return &res, nil
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("reading %s: %w", s.path, err)
			}
		}

		if err := s.wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *FollowSource) start() error {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.path, err)
	}
	s.path = abs

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	s.watcher = watcher

	if err := s.open(!s.fromStart); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("opening log file %s: %w", s.path, err)
	}
	return nil
}

// wait blocks until the watched file changes.
func (s *FollowSource) wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return io.ErrClosedPipe
			}
			return fmt.Errorf("watching %s: %w", s.path, err)
		case event, ok := <-s.watcher.Events:
			if !ok {
				return io.ErrClosedPipe
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				s.closeFile()
			case event.Has(fsnotify.Create):
				if err := s.open(false); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("opening log file %s: %w", s.path, err)
				}
				return nil
			case event.Has(fsnotify.Write):
				if s.file == nil {
					if err := s.open(false); err != nil && !errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("opening log file %s: %w", s.path, err)
					}
				}
				return nil
			}
		}
	}
}

func (s *FollowSource) open(atEnd bool) error {
	s.closeFile()

	f, err := os.Open(s.path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return err
	}
	if atEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return err
		}
	}

	s.file = f
	s.reader = bufio.NewReader(f)
	s.partial = lineBuffer{}
	s.line = 0
	return nil
}

func (s *FollowSource) closeFile() {
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = nil
	s.reader = nil
}

// Close stops watching and closes the file.
func (s *FollowSource) Close() error {
	s.closeFile()
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}
