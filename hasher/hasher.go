package hasher

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const (
	digestBufferSmallSize      = 32 * 1024
	digestBufferLargeSize      = 128 * 1024
	digestLargeBufferThreshold = 256 * 1024
)

var digestBufferSmallPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, digestBufferSmallSize)
		return &buf
	},
}

var digestBufferLargePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, digestBufferLargeSize)
		return &buf
	},
}

// SumBytes returns the xxhash64 digest of data as a hex string.
func SumBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// DigestFile streams the whole file through xxhash64 and returns the
// digest as a hex string. Used to verify copies onto flaky mounts.
func DigestFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	bufferPool := &digestBufferSmallPool
	if info, statErr := file.Stat(); statErr == nil && info.Size() >= digestLargeBufferThreshold {
		bufferPool = &digestBufferLargePool
	}
	bufferPtr := bufferPool.Get().(*[]byte)
	buffer := *bufferPtr
	defer bufferPool.Put(bufferPtr)

	digest := xxhash.New()
	for {
		n, readErr := file.Read(buffer)
		if n > 0 {
			if _, writeErr := digest.Write(buffer[:n]); writeErr != nil {
				return "", writeErr
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", readErr
		}
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}
