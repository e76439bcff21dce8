package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueueKeepsOrderPerKey(t *testing.T) {
	q := NewQueue(4, 8)
	var mu sync.Mutex
	got := make(map[string][]int)
	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b", "c"} {
			i, key := i, key
			if err := q.Submit(key, func(context.Context) {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
			}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
	}
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	for key, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("key %s ran %d tasks", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("key %s out of order at %d: %v", key, i, seq)
			}
		}
	}
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue(1, 1)
	if err := q.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit("k", func(context.Context) {}); err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	// 重复关闭无副作用
	if err := q.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestQueueRecoversPanics(t *testing.T) {
	q := NewQueue(1, 4)
	ran := make(chan struct{})
	_ = q.Submit("k", func(context.Context) { panic("boom") })
	_ = q.Submit("k", func(context.Context) { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task after panic did not run")
	}
	_ = q.Close(context.Background())
}
