package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
)

var ErrHeaderMismatch = errors.New("applog: header mismatch")

// AppendLog is an append-only CSV file. The header is written once, when the
// file is empty; reopening an existing log keeps its rows and appends after them.
type AppendLog struct {
	file   *os.File
	mu     sync.Mutex
	buf    *bufio.Writer
	w      *csv.Writer
	header []string
}

func OpenAppendLog(path string, header []string) (*AppendLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	l := &AppendLog{file: f, buf: bufio.NewWriter(f), header: header}
	l.w = csv.NewWriter(l.buf)

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() == 0 {
		if err := l.writeRow(header); err != nil {
			f.Close()
			return nil, err
		}
		return l, nil
	}

	existing, err := readHeader(path)
	if err != nil {
		f.Close()
		return nil, err
	}
	if !slices.Equal(existing, header) {
		f.Close()
		return nil, fmt.Errorf("%w: %s has %v, want %v", ErrHeaderMismatch, path, existing, header)
	}
	return l, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).Read()
}

func (l *AppendLog) writeRow(row []string) error {
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return err
	}
	return l.buf.Flush()
}

// Append writes one row and flushes it to the file.
func (l *AppendLog) Append(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(row) != len(l.header) {
		return fmt.Errorf("applog: row has %d fields, header has %d", len(row), len(l.header))
	}
	return l.writeRow(row)
}

func (l *AppendLog) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.buf.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

func (l *AppendLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Flush()
	return l.file.Close()
}

// Truncate drops all rows and rewrites the header.
func (l *AppendLog) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.buf.Flush(); err != nil {
		return err
	}
	path := l.file.Name()
	if err := l.file.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.buf = bufio.NewWriter(f)
	l.w = csv.NewWriter(l.buf)
	if err := l.writeRow(l.header); err != nil {
		return err
	}
	return l.file.Sync()
}

func (l *AppendLog) Size() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.buf.Flush(); err != nil {
		return 0, err
	}
	st, err := l.file.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// LogIterator reads rows of a log file back, header excluded.
type LogIterator struct {
	reader *csv.Reader
	file   *os.File
	Header []string
}

func OpenLogIterator(path string) (*LogIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bufio.NewReader(f))
	header, err := r.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("applog: %s has no header", path)
		}
		return nil, err
	}
	return &LogIterator{reader: r, file: f, Header: header}, nil
}

// Next returns the next row as a column→value map, io.EOF at the end.
func (it *LogIterator) Next() (map[string]string, error) {
	row, err := it.reader.Read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(it.Header))
	for i, h := range it.Header {
		if i < len(row) {
			out[h] = row[i]
		}
	}
	return out, nil
}

func (it *LogIterator) Close() {
	it.file.Close()
}
