package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestGetOrCreate_SameNameSameSession(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()
	ctx := context.Background()

	s1, err := r.GetOrCreate(ctx, "covid")
	if err != nil {
		t.Fatalf("GetOrCreate() first call error = %v", err)
	}
	s2, err := r.GetOrCreate(ctx, "covid")
	if err != nil {
		t.Fatalf("GetOrCreate() second call error = %v", err)
	}

	if s1 != s2 {
		t.Error("GetOrCreate() returned different sessions for the same name")
	}
	if s1.AppName() != "covid" {
		t.Errorf("AppName() = %q, want covid", s1.AppName())
	}
	if s1.ID() == "" {
		t.Error("ID() is empty")
	}
}

func TestGetOrCreate_DifferentNames(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()
	ctx := context.Background()

	a, err := r.GetOrCreate(ctx, "a")
	if err != nil {
		t.Fatalf("GetOrCreate(a) error = %v", err)
	}
	b, err := r.GetOrCreate(ctx, "b")
	if err != nil {
		t.Fatalf("GetOrCreate(b) error = %v", err)
	}

	if a == b || a.DB() == b.DB() {
		t.Error("different names share a session")
	}
	if a.ID() == b.ID() {
		t.Error("different sessions share a run id")
	}
	if got := r.Names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", got)
	}
}

func TestGetOrCreate_EmptyName(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	if _, err := r.GetOrCreate(context.Background(), "  "); !errors.Is(err, ErrEmptyAppName) {
		t.Errorf("GetOrCreate(\"  \") error = %v, want ErrEmptyAppName", err)
	}
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()
	ctx := context.Background()

	const n = 8
	got := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate(ctx, "shared")
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
				return
			}
			got[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("goroutine %d got a different session", i)
		}
	}
}

func TestClose_EmptiesRegistry(t *testing.T) {
	r := NewRegistry(Options{})
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, "covid")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(r.Names()) != 0 {
		t.Errorf("Names() after Close = %v, want empty", r.Names())
	}

	second, err := r.GetOrCreate(ctx, "covid")
	if err != nil {
		t.Fatalf("GetOrCreate() after Close error = %v", err)
	}
	defer r.Close()
	if first == second {
		t.Error("GetOrCreate() after Close returned the closed session")
	}
}

func TestNextTableName(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	s, err := r.GetOrCreate(context.Background(), "covid")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if len(s.tag) != 8 {
		t.Fatalf("tag = %q, want 8 characters of the run id", s.tag)
	}

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "cases", want: "cases_%s_1"},
		{prefix: "cases", want: "cases_%s_2"},
		{prefix: "Deaths.json", want: "deaths_json_%s_1"},
		{prefix: "", want: "table_%s_1"},
	}
	for _, tt := range tests {
		want := fmt.Sprintf(tt.want, s.tag)
		if got := s.NextTableName(tt.prefix); got != want {
			t.Errorf("NextTableName(%q) = %q, want %q", tt.prefix, got, want)
		}
	}
}
