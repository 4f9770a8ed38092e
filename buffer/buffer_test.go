package buffer

import "testing"

func TestAppendGrowsAndReads(t *testing.T) {
	b := New(4)
	b.Append([]byte{1, 2})
	b.Append([]byte{3, 4, 5})
	if got := b.Bytes(); string(got) != string([]byte{1, 2, 3, 4, 5}) {
		t.Fatalf("Bytes = %v, want [1 2 3 4 5]", got)
	}
	if b.Len() != 5 {
		t.Fatalf("Len = %d, want 5", b.Len())
	}
}

func TestClearKeepsCapacity(t *testing.T) {
	b := New(8)
	b.Append([]byte{1, 2, 3})
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", b.Len())
	}
	b.Append([]byte{9})
	if b.Bytes()[0] != 9 {
		t.Fatalf("Bytes()[0] = %d, want 9", b.Bytes()[0])
	}
}

func TestResizeTruncatesAndZeroExtends(t *testing.T) {
	b := New(4)
	b.Append([]byte{1, 2, 3, 4})
	b.Resize(2)
	if b.Len() != 2 {
		t.Fatalf("Len after shrink = %d, want 2", b.Len())
	}
	b.Resize(5)
	if b.Len() != 5 {
		t.Fatalf("Len after grow = %d, want 5", b.Len())
	}
	if b.Bytes()[4] != 0 {
		t.Fatalf("grown byte = %d, want 0", b.Bytes()[4])
	}
}
