package taskqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/vnykmshr/gosched/internal/testutil"
)

func TestFutureSettleOnce(t *testing.T) {
	f := NewFuture()

	select {
	case <-f.Done():
		t.Fatal("future settled before Settle")
	default:
	}
	testutil.AssertEqual(t, f.Err(), nil)

	boom := errors.New("boom")
	f.Settle(boom)
	f.Settle(errors.New("ignored"))

	<-f.Done()
	testutil.AssertEqual(t, errors.Is(f.Err(), boom), true)
}

func TestFutureSubscribe(t *testing.T) {
	f := NewFuture()

	var got []error
	f.subscribe(func(err error) { got = append(got, err) })
	f.Settle(nil)

	// Subscribing after settlement runs immediately.
	f.subscribe(func(err error) { got = append(got, err) })

	testutil.AssertEqual(t, len(got), 2)
	testutil.AssertEqual(t, got[0], nil)
	testutil.AssertEqual(t, got[1], nil)
}

func TestFutureAwait(t *testing.T) {
	f := NewFuture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	testutil.AssertEqual(t, errors.Is(f.Await(ctx), context.Canceled), true)

	f.Settle(nil)
	actx, acancel := testutil.WithTimeout(t)
	defer acancel()
	testutil.AssertNoError(t, f.Await(actx))
}
