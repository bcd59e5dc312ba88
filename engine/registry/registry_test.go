package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nathoo/worldweaver/types"
)

type session struct{ id string }

func quiet[T any]() Option[T] {
	return WithLogger[T](slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func countingFactory(calls *atomic.Int32) Factory[*session] {
	return func(_ context.Context, id string) (*session, error) {
		calls.Add(1)
		return &session{id: id}, nil
	}
}

func TestGetCreatesOnce(t *testing.T) {
	var calls atomic.Int32
	r := New(countingFactory(&calls), quiet[*session]())
	ctx := context.Background()

	a, created, err := r.Get(ctx, "s1")
	if err != nil || !created {
		t.Fatalf("first Get = %v created=%v err=%v", a, created, err)
	}
	b, created, err := r.Get(ctx, "s1")
	if err != nil || created {
		t.Fatalf("second Get created=%v err=%v", created, err)
	}
	if a != b {
		t.Error("second Get returned a different session")
	}
	if calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1", calls.Load())
	}
}

func TestGetConcurrent(t *testing.T) {
	var calls atomic.Int32
	r := New(countingFactory(&calls), quiet[*session]())

	var wg sync.WaitGroup
	got := make([]*session, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _, _ = r.Get(context.Background(), "shared")
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1", calls.Load())
	}
	for i := range got {
		if got[i] != got[0] {
			t.Fatalf("goroutine %d saw a different session", i)
		}
	}
}

func TestGetEmptyID(t *testing.T) {
	var calls atomic.Int32
	r := New(countingFactory(&calls), quiet[*session]())
	if _, _, err := r.Get(context.Background(), ""); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestFactoryError(t *testing.T) {
	boom := errors.New("boom")
	r := New(func(context.Context, string) (*session, error) { return nil, boom }, quiet[*session]())
	if _, _, err := r.Get(context.Background(), "s1"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after failed create", r.Len())
	}
}

func TestCapacityEviction(t *testing.T) {
	var calls atomic.Int32
	var evicted []string
	r := New(countingFactory(&calls),
		WithSize[*session](2),
		WithOnEvict(func(id string, _ *session) { evicted = append(evicted, id) }),
		quiet[*session](),
	)
	ctx := context.Background()
	r.Get(ctx, "a")
	r.Get(ctx, "b")
	r.Get(ctx, "a") // a is now most recent
	r.Get(ctx, "c")

	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if _, ok := r.Peek("b"); ok {
		t.Error("b should be gone")
	}
}

func TestEvict(t *testing.T) {
	var calls atomic.Int32
	var evicted []string
	r := New(countingFactory(&calls),
		WithOnEvict(func(id string, _ *session) { evicted = append(evicted, id) }),
		quiet[*session](),
	)
	r.Get(context.Background(), "a")

	if !r.Evict("a") {
		t.Error("Evict(a) = false, want true")
	}
	if r.Evict("a") {
		t.Error("second Evict(a) = true, want false")
	}
	if len(evicted) != 1 {
		t.Errorf("evicted = %v", evicted)
	}

	_, created, _ := r.Get(context.Background(), "a")
	if !created {
		t.Error("Get after Evict should recreate")
	}
}

func TestTTLExpiry(t *testing.T) {
	var calls atomic.Int32
	r := New(countingFactory(&calls), WithTTL[*session](20*time.Millisecond), quiet[*session]())
	r.Get(context.Background(), "a")

	time.Sleep(60 * time.Millisecond)
	if _, ok := r.Peek("a"); ok {
		t.Error("session should have expired")
	}
}

func TestCreate(t *testing.T) {
	var calls atomic.Int32
	r := New(countingFactory(&calls), quiet[*session]())
	id, s, err := r.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || s.id != id {
		t.Errorf("Create = %q %+v", id, s)
	}
	if ids := r.IDs(); len(ids) != 1 || ids[0] != id {
		t.Errorf("IDs = %v", ids)
	}
}
