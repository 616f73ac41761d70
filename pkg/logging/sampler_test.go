package logging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSampler(t *testing.T) {
	sampler := NewErrorSampler(10)

	assert.True(t, sampler.ShouldLog("SUMMER"), "first occurrence is logged")
	for i := 2; i <= 9; i++ {
		assert.False(t, sampler.ShouldLog("SUMMER"), "occurrence %d is sampled out", i)
	}
	assert.True(t, sampler.ShouldLog("SUMMER"), "10th occurrence is logged")
	assert.Equal(t, 10, sampler.GetCount("SUMMER"))

	sampler.Reset("SUMMER")
	assert.Equal(t, 0, sampler.GetCount("SUMMER"))
	assert.True(t, sampler.ShouldLog("SUMMER"), "first occurrence after reset is logged")
}

func TestErrorSampler_Sample(t *testing.T) {
	sampler := NewErrorSampler(3)

	ok, n := sampler.Sample("WINTER")
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	sampler.Sample("WINTER")
	ok, n = sampler.Sample("WINTER")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestErrorSampler_IndependentKeys(t *testing.T) {
	sampler := NewErrorSampler(5)

	sampler.ShouldLog("a")
	sampler.ShouldLog("b")
	sampler.ShouldLog("b")

	assert.Equal(t, 1, sampler.GetCount("a"))
	assert.Equal(t, 2, sampler.GetCount("b"))

	sampler.ResetAll()
	assert.Zero(t, sampler.GetCount("a"))
	assert.Zero(t, sampler.GetCount("b"))
}

func TestErrorSampler_InvalidInterval(t *testing.T) {
	sampler := NewErrorSampler(0)
	sampler.ShouldLog("x")
	for i := 2; i < 10; i++ {
		sampler.ShouldLog("x")
	}
	assert.True(t, sampler.ShouldLog("x"), "defaults to every 10th")
}

func TestErrorSampler_Concurrent(t *testing.T) {
	sampler := NewErrorSampler(10)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				sampler.ShouldLog("shared")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5000, sampler.GetCount("shared"))
}

func TestErrorSampler_SampleCountsAreDistinct(t *testing.T) {
	sampler := NewErrorSampler(10)
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool)

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, n := sampler.Sample("MAIN")
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000, "every occurrence gets its own count")
	assert.True(t, seen[1])
	assert.True(t, seen[1000])
}
