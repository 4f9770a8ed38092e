// Package buffer implements the growable byte vector that device dumps
// accumulate into (spec §2's external "Buffer" collaborator). Device core
// and family backends never allocate raw []byte slices for a memory image
// directly; they grow a *Buffer so repeated dump pages amortize allocation
// the way dc_buffer_t does in the original library.
package buffer

// Buffer is a growable byte vector with clear/resize/reserve/append/get.
type Buffer struct {
	data []byte
}

// New returns a Buffer pre-reserved to capacity bytes.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Clear empties the buffer without releasing its backing array.
func (b *Buffer) Clear() { b.data = b.data[:0] }

// Reserve ensures the buffer can grow to at least n bytes without
// reallocating.
func (b *Buffer) Reserve(n int) {
	if cap(b.data) >= n {
		return
	}
	grown := make([]byte, len(b.data), n)
	copy(grown, b.data)
	b.data = grown
}

// Resize truncates or zero-extends the buffer to exactly n bytes.
func (b *Buffer) Resize(n int) {
	if n <= len(b.data) {
		b.data = b.data[:n]
		return
	}
	b.Reserve(n)
	b.data = append(b.data, make([]byte, n-len(b.data))...)
}

// Append appends p to the buffer, growing as needed.
func (b *Buffer) Append(p []byte) { b.data = append(b.data, p...) }

// Bytes returns the buffer's current contents. The returned slice aliases
// the buffer's backing array and is only valid until the next mutation.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes currently in the buffer.
func (b *Buffer) Len() int { return len(b.data) }
