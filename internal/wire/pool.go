package wire

import (
	"sync"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

var pool sync.Pool

func init() {
	pool.New = func() interface{} {
		b := make([]byte, 0, FrameHeaderLen+protocol.DefaultBlockSize)
		return &b
	}
}

// GetFrameBuffer returns a zero-length buffer with capacity for one
// default-sized serialized frame.
func GetFrameBuffer() *[]byte {
	b := pool.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

func PutFrameBuffer(b *[]byte) {
	if cap(*b) != FrameHeaderLen+protocol.DefaultBlockSize {
		// buffers that grew past the pooled size are left for the GC
		return
	}
	pool.Put(b)
}
