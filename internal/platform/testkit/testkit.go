// Package testkit holds the few helpers shared by unit tests
package testkit

import (
	"sync"
	"testing"
)

var seams sync.Mutex

// Swap replaces *target until the test ends
// tests swapping package level seams should call Serial first
func Swap[T any](t *testing.T, target *T, v T) {
	t.Helper()
	orig := *target
	*target = v
	t.Cleanup(func() { *target = orig })
}

// Serial holds a process wide lock for the rest of the test
func Serial(t *testing.T) {
	t.Helper()
	seams.Lock()
	t.Cleanup(seams.Unlock)
}

// MustPanic fails the test unless fn panics, returning the recovered value
func MustPanic(t *testing.T, fn func()) (v any) {
	t.Helper()
	defer func() {
		if v = recover(); v == nil {
			t.Fatal("expected panic")
		}
	}()
	fn()
	return nil
}
