package taskqueue

import (
	"context"
	"testing"
)

func BenchmarkQueueAndFlush(b *testing.B) {
	q := NewWithConfig(Config{Requestor: NewManualRequestor().Bind})
	cb := func(context.Context) (*Future, error) { return nil, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := q.QueueTask(cb, Options{}); err != nil {
			b.Fatal(err)
		}
		if i%100 == 99 {
			q.Flush()
		}
	}
	q.Flush()
}

func BenchmarkQueueAndFlushReusable(b *testing.B) {
	q := NewWithConfig(Config{Requestor: NewManualRequestor().Bind})
	cb := func(context.Context) (*Future, error) { return nil, nil }
	opts := Options{Reusable: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := q.QueueTask(cb, opts); err != nil {
			b.Fatal(err)
		}
		q.Flush()
	}
}

func BenchmarkPreemptQueue(b *testing.B) {
	q := NewWithConfig(Config{Requestor: NewManualRequestor().Bind})
	cb := func(context.Context) (*Future, error) { return nil, nil }
	opts := Options{Preempt: true, Reusable: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := q.QueueTask(cb, opts); err != nil {
			b.Fatal(err)
		}
		q.Flush()
	}
}
