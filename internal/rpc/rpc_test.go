package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

const kindEcho Kind = 0x7E

type echoBody struct {
	N int `json:"n"`
}

func newLoopbackServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer(nil)
	srv.Handle(kindEcho, func(body json.RawMessage) (any, error) {
		var b echoBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return echoBody{N: b.N * 2}, nil
	})
	if err := srv.Serve("127.0.0.1:0"); err != nil {
		t.Fatalf("serve: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, srv.Addr().String()
}

func TestCallRoundTripOverRealLoopbackTCP(t *testing.T) {
	_, addr := newLoopbackServer(t)

	client := NewClient(time.Second)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	raw, err := client.Call(ctx, addr, kindEcho, echoBody{N: 21})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var got echoBody
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if got.N != 42 {
		t.Fatalf("n = %d, want 42", got.N)
	}
}

func TestCallConcurrentCallsDemultiplexByCorrelationID(t *testing.T) {
	_, addr := newLoopbackServer(t)

	client := NewClient(time.Second)
	t.Cleanup(func() { client.Close() })

	const calls = 50
	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			raw, err := client.Call(ctx, addr, kindEcho, echoBody{N: n})
			if err != nil {
				errs <- err
				return
			}
			var got echoBody
			if err := json.Unmarshal(raw, &got); err != nil {
				errs <- err
				return
			}
			if got.N != n*2 {
				errs <- errors.New("mismatched reply: wrong call's answer was delivered")
				return
			}
			errs <- nil
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}
}

func TestCallTimesOutWhenHandlerNeverReplies(t *testing.T) {
	srv := NewServer(nil)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	srv.Handle(kindEcho, func(body json.RawMessage) (any, error) {
		<-block // never returns within the test's deadline
		return echoBody{}, nil
	})
	if err := srv.Serve("127.0.0.1:0"); err != nil {
		t.Fatalf("serve: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	client := NewClient(time.Second)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, srv.Addr().String(), kindEcho, echoBody{N: 1})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestCallUnknownKindReturnsRemoteError(t *testing.T) {
	_, addr := newLoopbackServer(t)

	client := NewClient(time.Second)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Call(ctx, addr, Kind(0x01), echoBody{N: 1})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
}

func TestCallUnreachableEndpointFails(t *testing.T) {
	client := NewClient(200 * time.Millisecond)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Call(ctx, "127.0.0.1:1", kindEcho, echoBody{N: 1})
	if !IsUnreachable(err) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}
