// Package journal is a segmented append-only record of every trade event
// handed to the book, framed with a CRC so audit tooling can detect torn
// writes. It records the input tape; it is never replayed into the book.
package journal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Config struct {
	Dir         string
	SegmentSize int64
}

// Journal has a single writer: the ingest loop. It is not safe for
// concurrent Append.
type Journal struct {
	dir      string
	segSize  int64
	current  *segment
	segIndex int
}

func Open(cfg Config) (*Journal, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	idx, err := lastSegmentIndex(cfg.Dir)
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(cfg.Dir, idx)
	if err != nil {
		return nil, err
	}

	return &Journal{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		current:  seg,
		segIndex: idx,
	}, nil
}

func (j *Journal) Append(r *Record) error {
	payloadLen := uint32(len(r.Data))

	// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
	buf := make([]byte, frameHeaderLen+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[frameHeaderLen:], r.Data)

	crc := CRC32(buf[:frameHeaderLen+payloadLen])
	binary.BigEndian.PutUint32(buf[frameHeaderLen+payloadLen:], crc)

	if err := j.current.append(buf); err != nil {
		return err
	}

	if j.current.offset >= j.segSize {
		return j.rotate()
	}
	return nil
}

func (j *Journal) rotate() error {
	_ = j.current.close()
	j.segIndex++

	seg, err := openSegment(j.dir, j.segIndex)
	if err != nil {
		return err
	}
	j.current = seg
	return nil
}

// TruncateBefore drops whole segments whose records all carry a sequence
// at or below seq.
func (j *Journal) TruncateBefore(seq uint64) error {
	files, err := filepath.Glob(filepath.Join(j.dir, "segment-*.tape"))
	if err != nil {
		return err
	}

	// An unreadable segment is kept, but the caller hears about it so a
	// corrupt file cannot pin disk space silently forever.
	var firstErr error
	for _, path := range files {
		if path == j.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("journal: inspect %s: %w", filepath.Base(path), err)
			}
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return firstErr
}

func (j *Journal) Close() error {
	return j.current.close()
}

type segment struct {
	path   string
	file   *os.File
	offset int64
}

func openSegment(dir string, index int) (*segment, error) {
	path := filepath.Join(dir, fmt.Sprintf("segment-%06d.tape", index))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{path: path, file: f, offset: st.Size()}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.file.Write(b)
	if err != nil {
		return err
	}
	s.offset += int64(n)
	return nil
}

func (s *segment) close() error {
	return s.file.Close()
}

// lastSegmentIndex finds the highest existing segment so a restart keeps
// appending instead of clobbering the tape.
func lastSegmentIndex(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.tape"))
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	sort.Strings(files)

	var idx int
	if _, err := fmt.Sscanf(filepath.Base(files[len(files)-1]), "segment-%06d.tape", &idx); err != nil {
		return 0, err
	}
	return idx, nil
}
