// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStreamingBufferBatchSizeFlush(t *testing.T) {
	sb := NewStreamingBuffer()

	// Below the batch size and inside the frame window: no flush yet.
	sb.Write("a")
	if content, ok := sb.Flush(); ok {
		t.Errorf("expected no flush for a single fresh chunk, got %q", content)
	}

	for i := 0; i < defaultBatchSize; i++ {
		sb.Write("x")
	}
	content, ok := sb.Flush()
	if !ok {
		t.Fatal("expected flush after reaching batch size")
	}
	if content != "a"+strings.Repeat("x", defaultBatchSize) {
		t.Errorf("unexpected flushed content %q", content)
	}
	if sb.Pending() != 0 {
		t.Errorf("pending = %d after flush, want 0", sb.Pending())
	}
}

func TestStreamingBufferTimeFlush(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Write("slow token")

	time.Sleep(2 * time.Second / defaultMaxFPS)

	content, ok := sb.Flush()
	if !ok {
		t.Fatal("expected time-based flush")
	}
	if content != "slow token" {
		t.Errorf("flushed %q, want %q", content, "slow token")
	}
}

func TestStreamingBufferForceFlush(t *testing.T) {
	sb := NewStreamingBuffer()

	if _, ok := sb.ForceFlush(); ok {
		t.Error("empty buffer should not force-flush")
	}

	sb.Write("tail")
	content, ok := sb.ForceFlush()
	if !ok || content != "tail" {
		t.Errorf("ForceFlush = %q, %v; want %q, true", content, ok, "tail")
	}
}

func TestStreamingBufferReset(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Write("discard me")
	sb.Reset()

	if _, ok := sb.ForceFlush(); ok {
		t.Error("reset buffer should be empty")
	}
}

func TestStreamingBufferConcurrentWrites(t *testing.T) {
	sb := NewStreamingBuffer()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sb.Write("t")
			}
		}()
	}
	wg.Wait()

	var total int
	for {
		content, ok := sb.ForceFlush()
		if !ok {
			break
		}
		total += len(content)
	}
	if total != 1000 {
		t.Errorf("accumulated %d bytes, want 1000", total)
	}
}
