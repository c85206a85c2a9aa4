// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"testing"
	"time"
)

// DefaultTimeout bounds every wait in the helpers below.
const DefaultTimeout = 10 * time.Second

// WaitFor receives from ch until match accepts a value, skipping the rest.
// It fails the test on timeout or when ch is closed.
func WaitFor[T any](t testing.TB, ch <-chan T, timeout time.Duration, match func(T) bool) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting")
			}
			if match(v) {
				return v
			}
		case <-timer.C:
			t.Fatalf("timeout after %v", timeout)
		}
	}
}

// Collect receives from ch for d and returns everything received.
func Collect[T any](ch <-chan T, d time.Duration) []T {
	var out []T
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-timer.C:
			return out
		}
	}
}
