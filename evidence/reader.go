package evidence

import (
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

var openMmapReader = mmap.Open

// readHead returns up to maxBytes from the start of the file. Unlike a
// full content read there is no size cutoff: large videos still get
// their head scanned, since the container atoms live up front.
func readHead(path string, maxBytes int64, mode string, mmapMinSize int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = defaultHeadMaxBytes
	}
	if mmapMinSize <= 0 {
		mmapMinSize = defaultMmapMinSize
	}

	switch mode {
	case "mmap":
		return readHeadMmap(path, maxBytes)
	case "stream":
		return readHeadStream(path, maxBytes)
	default:
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() >= mmapMinSize {
			if head, mmapErr := readHeadMmap(path, maxBytes); mmapErr == nil {
				return head, nil
			}
		}
		return readHeadStream(path, maxBytes)
	}
}

func readHeadMmap(path string, maxBytes int64) ([]byte, error) {
	r, err := openMmapReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	readSize := int64(r.Len())
	if readSize > maxBytes {
		readSize = maxBytes
	}
	if readSize <= 0 {
		return []byte{}, nil
	}
	buf := make([]byte, readSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

func readHeadStream(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}
