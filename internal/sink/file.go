package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/mirage/internal/event"
)

// File writes canonically-encoded JSON lines into one .jsonl file per
// topic under a base directory. Files are created lazily on the first
// event of each topic and truncated, not appended: each run produces a
// fresh output set.
type File struct {
	dir   string
	files map[string]*topicFile
}

type topicFile struct {
	f   *os.File
	buf *bufio.Writer
}

// NewFile creates a file sink rooted at dir, creating it if missing.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return &File{dir: dir, files: make(map[string]*topicFile)}, nil
}

// Write appends one JSON line to the topic's file.
func (s *File) Write(ev event.Event, topic string) error {
	tf, err := s.topicFile(topic)
	if err != nil {
		return err
	}
	data, err := event.MarshalRecord(ev.Record())
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if _, err := tf.buf.Write(data); err != nil {
		return fmt.Errorf("write event %s: %w", ev.ID, err)
	}
	if err := tf.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *File) topicFile(topic string) (*topicFile, error) {
	if tf, ok := s.files[topic]; ok {
		return tf, nil
	}
	path := filepath.Join(s.dir, topic+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create topic file %s: %w", path, err)
	}
	tf := &topicFile{f: f, buf: bufio.NewWriter(f)}
	s.files[topic] = tf
	return tf, nil
}

// Close flushes and closes every topic file.
func (s *File) Close() error {
	var firstErr error
	for topic, tf := range s.files {
		if err := tf.buf.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush topic %s: %w", topic, err)
		}
		if err := tf.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close topic %s: %w", topic, err)
		}
	}
	return firstErr
}
