package arena

import "testing"

func TestPushPopLIFO(t *testing.T) {
	a := New(64)
	b1, err := a.Push(8)
	if err != nil {
		t.Fatalf("push 1: %v", err)
	}
	b2, err := a.Push(16)
	if err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if len(b1) != 8 || len(b2) != 16 {
		t.Fatalf("unexpected block sizes: %d, %d", len(b1), len(b2))
	}
	if a.Top() != 24 {
		t.Fatalf("top = %d, want 24", a.Top())
	}
	if err := a.Pop(16); err != nil {
		t.Fatalf("pop 2: %v", err)
	}
	if err := a.Pop(8); err != nil {
		t.Fatalf("pop 1: %v", err)
	}
	if a.Top() != 0 {
		t.Fatalf("top after unwind = %d, want 0", a.Top())
	}
}

func TestPopMismatchIsRejected(t *testing.T) {
	a := New(64)
	if _, err := a.Push(8); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := a.Pop(4); err == nil {
		t.Fatal("expected error popping wrong size")
	}
}

func TestPopEmptyStackErrors(t *testing.T) {
	a := New(64)
	if err := a.Pop(1); err == nil {
		t.Fatal("expected error popping empty stack")
	}
}

func TestPushExhaustion(t *testing.T) {
	a := New(8)
	if _, err := a.Push(8); err != nil {
		t.Fatalf("push to capacity: %v", err)
	}
	if _, err := a.Push(1); err == nil {
		t.Fatal("expected error pushing past capacity")
	}
}

func TestPushFramePopFrameReleasesInOneStep(t *testing.T) {
	a := New(64)
	if _, err := a.Push(4); err != nil {
		t.Fatalf("outer push: %v", err)
	}
	a.PushFrame()
	if _, err := a.Push(8); err != nil {
		t.Fatalf("frame push 1: %v", err)
	}
	if _, err := a.Push(12); err != nil {
		t.Fatalf("frame push 2: %v", err)
	}
	if a.Top() != 24 {
		t.Fatalf("top before pop-frame = %d, want 24", a.Top())
	}
	released, err := a.PopFrame()
	if err != nil {
		t.Fatalf("pop-frame: %v", err)
	}
	if released != 20 {
		t.Fatalf("released = %d, want 20", released)
	}
	if a.Top() != 4 {
		t.Fatalf("top after pop-frame = %d, want 4 (outer push preserved)", a.Top())
	}
}

func TestNestedFrames(t *testing.T) {
	a := New(64)
	a.PushFrame()
	if _, err := a.Push(4); err != nil {
		t.Fatalf("push: %v", err)
	}
	a.PushFrame()
	if _, err := a.Push(4); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, err := a.PopFrame(); err != nil {
		t.Fatalf("inner pop-frame: %v", err)
	}
	if a.Top() != 4 {
		t.Fatalf("top after inner pop-frame = %d, want 4", a.Top())
	}
	if _, err := a.PopFrame(); err != nil {
		t.Fatalf("outer pop-frame: %v", err)
	}
	if a.Top() != 0 {
		t.Fatalf("top after outer pop-frame = %d, want 0", a.Top())
	}
}

func TestPopFrameWithoutPushFrameErrors(t *testing.T) {
	a := New(64)
	if _, err := a.PopFrame(); err == nil {
		t.Fatal("expected error popping frame with none open")
	}
}

func TestAllocMemAndFreeMemAnyOrder(t *testing.T) {
	a := New(64)
	h1, buf1, err := a.AllocMem(10)
	if err != nil {
		t.Fatalf("alloc 1: %v", err)
	}
	h2, buf2, err := a.AllocMem(20)
	if err != nil {
		t.Fatalf("alloc 2: %v", err)
	}
	if len(buf1) != 10 || len(buf2) != 20 {
		t.Fatalf("unexpected alloc sizes: %d, %d", len(buf1), len(buf2))
	}
	if a.DetachedBytes() != 30 {
		t.Fatalf("detached bytes = %d, want 30", a.DetachedBytes())
	}
	// Free in non-LIFO order: h1 before h2's sibling allocations would be freed.
	if err := a.FreeMem(h1); err != nil {
		t.Fatalf("free 1: %v", err)
	}
	if a.DetachedBytes() != 20 {
		t.Fatalf("detached bytes after free = %d, want 20", a.DetachedBytes())
	}
	if err := a.FreeMem(h2); err != nil {
		t.Fatalf("free 2: %v", err)
	}
	if a.DetachedBytes() != 0 {
		t.Fatalf("detached bytes after both frees = %d, want 0", a.DetachedBytes())
	}
}

func TestFreeMemDoubleFreeErrors(t *testing.T) {
	a := New(64)
	h, _, err := a.AllocMem(4)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := a.FreeMem(h); err != nil {
		t.Fatalf("first free: %v", err)
	}
	if err := a.FreeMem(h); err == nil {
		t.Fatal("expected error on double free")
	}
}
