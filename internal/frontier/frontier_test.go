package frontier_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/deidaraiorek/searchcore/internal/frontier"
)

func TestFrontier(t *testing.T) {
	f := frontier.New(0, "https://golang.org", "https://go.dev", "https://golang.org")

	if f.Len() != 2 {
		t.Errorf("Expected 2 seeds after dedup, got %d", f.Len())
	}
	if f.Level() != 0 {
		t.Errorf("Expected level 0, got %d", f.Level())
	}

	if f.Add("https://go.dev") {
		t.Error("Duplicate URL should not be added")
	}
	if !f.Add("https://pkg.go.dev") {
		t.Error("New URL should be added")
	}
	if !f.Has("https://pkg.go.dev") {
		t.Error("Added URL should be reported as present")
	}

	want := []string{"https://golang.org", "https://go.dev", "https://pkg.go.dev"}
	got := f.URLs()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("URLs()[%d] = %s, want %s (insertion order)", i, got[i], want[i])
		}
	}

	got[0] = "mutated"
	if f.URLs()[0] != "https://golang.org" {
		t.Error("URLs() must return a copy")
	}

	next := f.Next()
	if next.Level() != 1 || !next.IsEmpty() {
		t.Errorf("Expected empty level 1 set, got level %d with %d urls", next.Level(), next.Len())
	}
}

func TestFrontierConcurrentAdd(t *testing.T) {
	f := frontier.New(1)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f.Add(fmt.Sprintf("https://example.com/%d", i))
			}
		}()
	}
	wg.Wait()

	if f.Len() != 100 {
		t.Errorf("Expected 100 distinct URLs, got %d", f.Len())
	}
}
