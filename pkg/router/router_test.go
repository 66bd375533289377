package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"comicgrabber/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Value string `json:"value"`
	Delay int    `json:"delay"`
}

func startRouter(t *testing.T, r *Router) (*Client, *logger.TestLogger) {
	t.Helper()
	serverPort, clientPort := Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = r.Serve(ctx, serverPort)
	}()

	log := logger.NewTestLogger()
	client := NewClient(clientPort, log)
	go func() { _ = client.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		serverPort.Close()
		<-served
	})
	return client, log
}

func echoHandler(ctx context.Context, data json.RawMessage, reply *Replier) (interface{}, error) {
	var req echoRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	time.Sleep(time.Duration(req.Delay) * time.Millisecond)
	return map[string]string{"value": req.Value}, nil
}

func TestConcurrentCallsCorrelate(t *testing.T) {
	r := New(logger.NewTestLogger())
	r.Handle("echo", echoHandler)
	client, _ := startRouter(t, r)

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)

	// the slow request is sent first so its response arrives second
	for i, req := range []echoRequest{{Value: "slow", Delay: 100}, {Value: "fast"}} {
		wg.Add(1)
		go func(i int, req echoRequest) {
			defer wg.Done()
			var out map[string]string
			errs[i] = client.Call(context.Background(), "echo", req, &out)
			results[i] = out["value"]
		}(i, req)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, "slow", results[0])
	assert.Equal(t, "fast", results[1])
}

func TestHandlerErrorIsSentAsData(t *testing.T) {
	r := New(logger.NewTestLogger())
	r.Handle("boom", func(context.Context, json.RawMessage, *Replier) (interface{}, error) {
		return nil, errors.New("no images")
	})
	client, _ := startRouter(t, r)

	err := client.Call(context.Background(), "boom", nil, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "no images", remote.Message)
}

func TestPanicIsRecoveredAndAnswered(t *testing.T) {
	log := logger.NewTestLogger()
	r := New(log)
	r.Handle("panic", func(context.Context, json.RawMessage, *Replier) (interface{}, error) {
		panic("kaboom")
	})
	r.Handle("echo", echoHandler)
	client, _ := startRouter(t, r)

	err := client.Call(context.Background(), "panic", nil, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "kaboom")
	assert.True(t, log.HasMessage("Panic in handler"))

	// router keeps serving after a panic
	var out map[string]string
	require.NoError(t, client.Call(context.Background(), "echo", echoRequest{Value: "still here"}, &out))
	assert.Equal(t, "still here", out["value"])
}

func TestUnknownActionGetsNullResponse(t *testing.T) {
	r := New(logger.NewTestLogger())
	client, _ := startRouter(t, r)

	err := client.Call(context.Background(), "nope", map[string]int{"x": 1}, nil)
	assert.ErrorIs(t, err, ErrUnhandled)
}

func TestNotifyCarriesClientUID(t *testing.T) {
	r := New(logger.NewTestLogger())
	r.Handle("work", func(ctx context.Context, data json.RawMessage, reply *Replier) (interface{}, error) {
		_ = reply.Notify(ctx, ActionWarning, map[string]string{"brief": "fetch failed", "src": "u2"})
		return "done", nil
	})
	client, _ := startRouter(t, r)

	var mu sync.Mutex
	var notes []Message
	client.OnNotify = func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		notes = append(notes, m)
	}

	var out string
	require.NoError(t, client.Call(context.Background(), "work", nil, &out))
	assert.Equal(t, "done", out)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notes, 1)
	assert.Equal(t, ActionWarning, notes[0].Action)
	assert.NotEmpty(t, notes[0].ClientUID)
	assert.JSONEq(t, `{"brief":"fetch failed","src":"u2"}`, string(notes[0].Data))
}

func TestCallFailsWhenPortCloses(t *testing.T) {
	serverPort, clientPort := Pipe()
	client := NewClient(clientPort, nil)
	go func() { _ = client.Run(context.Background()) }()

	errCh := make(chan error, 1)
	go func() { errCh <- client.Call(context.Background(), "echo", nil, nil) }()

	// drain the request, then hang up without answering
	_, err := serverPort.Receive(context.Background())
	require.NoError(t, err)
	serverPort.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return after close")
	}
}

func TestStreamPortRoundTrip(t *testing.T) {
	input := strings.NewReader(
		`{"action":"echo","clientUid":"a","data":{"value":"x"}}` + "\n\n" +
			`{"action":"nope","clientUid":"b","data":null}` + "\n")
	var output bytes.Buffer

	port := NewStreamPort(input, &output)
	r := New(logger.NewTestLogger())
	r.Handle("echo", echoHandler)

	require.NoError(t, r.Serve(context.Background(), port))

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 2)

	got := map[string]Message{}
	for _, line := range lines {
		var m Message
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		got[m.ClientUID] = m
	}
	assert.Equal(t, "echo", got["a"].Action)
	assert.JSONEq(t, `{"value":"x"}`, string(got["a"].Data))
	assert.Equal(t, "nope", got["b"].Action)
	assert.Equal(t, "null", string(got["b"].Data))
}

func TestStreamPortMalformedLine(t *testing.T) {
	port := NewStreamPort(strings.NewReader("not json\n"), io.Discard)
	_, err := port.Receive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed message")
}
