package crawl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/model"
)

func task(u string) model.CrawlTask { return model.CrawlTask{URL: u} }

func TestFrontier_LIFO(t *testing.T) {
	f := NewFrontier()
	assert.Equal(t, 3, f.Push(task("a"), task("b"), task("c")))

	var got []string
	for {
		tk, ok := f.Pop()
		if !ok {
			break
		}
		got = append(got, tk.URL)
		f.Done()
	}
	assert.Equal(t, []string{"c", "b", "a"}, got)
}

func TestFrontier_PushDedupesPending(t *testing.T) {
	f := NewFrontier()
	assert.Equal(t, 1, f.Push(task("a")))
	assert.Equal(t, 0, f.Push(task("a")))
	assert.Equal(t, 1, f.Push(model.CrawlTask{URL: "a", Cookies: "sid=1"}))
	assert.Equal(t, 2, f.Len())

	_, ok := f.Pop()
	require.True(t, ok)
	// Popped keys may be pushed again.
	f.Done()
	assert.Equal(t, 1, f.Push(model.CrawlTask{URL: "a", Cookies: "sid=1"}))
}

func TestFrontier_PopWaitsForInFlight(t *testing.T) {
	f := NewFrontier()
	f.Push(task("root"))

	root, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "root", root.URL)

	got := make(chan string)
	go func() {
		tk, ok := f.Pop()
		if ok {
			got <- tk.URL
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("Pop returned while the stack was empty and a task was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	f.Push(task("child"))
	f.Done()
	assert.Equal(t, "child", <-got)
}

func TestFrontier_DrainsWhenIdle(t *testing.T) {
	f := NewFrontier()
	f.Push(task("only"))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := f.Pop(); !ok {
					return
				}
				f.Done()
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, f.Len())
}

func TestFrontier_Close(t *testing.T) {
	f := NewFrontier()
	f.Push(task("a"))
	_, ok := f.Pop()
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		_, ok := f.Pop()
		assert.False(t, ok)
		close(done)
	}()
	f.Close()
	<-done

	assert.Zero(t, f.Push(task("b")))
}

func TestVisitedSet(t *testing.T) {
	s := NewVisitedSet()
	k := model.TaskKey{URL: "https://site.example/"}
	assert.True(t, s.MarkIfNotVisited(k))
	assert.False(t, s.MarkIfNotVisited(k))
	assert.True(t, s.MarkIfNotVisited(model.TaskKey{URL: k.URL, Cookies: "sid=1"}))
	assert.True(t, s.Contains(k))
	assert.Equal(t, 2, s.Len())

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkIfNotVisited(model.TaskKey{URL: "https://site.example/race"}) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
