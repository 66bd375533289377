package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"comicgrabber/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrUnhandled means the other side had no handler for the action
	ErrUnhandled = errors.New("action not handled")
)

// RemoteError is an error reported by the handler on the other side
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Client sends requests over a Port and matches responses to them by
// clientUid and action
type Client struct {
	port Port
	log  logger.Logger

	// OnNotify receives messages that do not answer a pending call, such as
	// warnings. It runs on the receive goroutine.
	OnNotify func(Message)

	mu      sync.Mutex
	pending map[string]pendingCall
	err     error
	done    chan struct{}
}

type pendingCall struct {
	action string
	ch     chan Message
}

// NewClient creates a client over port. Run must be started before Call.
func NewClient(port Port, log logger.Logger) *Client {
	return &Client{
		port:    port,
		log:     logger.OrDefault(log).WithField("component", "router_client"),
		pending: make(map[string]pendingCall),
		done:    make(chan struct{}),
	}
}

// Run receives messages until the port closes or ctx is cancelled. Pending
// calls fail once it returns.
func (c *Client) Run(ctx context.Context) error {
	var runErr error
	defer func() {
		c.mu.Lock()
		c.err = runErr
		if c.err == nil {
			c.err = ErrClosed
		}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		msg, err := c.port.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrClosed) {
				return nil
			}
			runErr = err
			return err
		}

		c.mu.Lock()
		call, ok := c.pending[msg.ClientUID]
		if ok && call.action == msg.Action {
			delete(c.pending, msg.ClientUID)
		} else {
			ok = false
		}
		c.mu.Unlock()

		if ok {
			call.ch <- msg
			continue
		}
		if c.OnNotify != nil {
			c.OnNotify(msg)
		} else {
			c.log.DebugWithFields("Dropping unmatched message", map[string]interface{}{
				"action":    msg.Action,
				"clientUid": msg.ClientUID,
			})
		}
	}
}

// Call sends action with data and waits for its response. The response data
// is decoded into out when out is non-nil.
func (c *Client) Call(ctx context.Context, action string, data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	uid := uuid.NewString()
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[uid] = pendingCall{action: action, ch: ch}
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, uid)
		c.mu.Unlock()
	}

	if err := c.port.Send(ctx, Message{Action: action, ClientUID: uid, Data: raw}); err != nil {
		forget()
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-ch:
		return decodeResponse(action, resp.Data, out)
	case <-ctx.Done():
		forget()
		return ctx.Err()
	case <-c.done:
		forget()
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.err
	}
}

func decodeResponse(action string, data json.RawMessage, out interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return ErrUnhandled
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope) == 1 {
		if rawMsg, ok := envelope["error"]; ok {
			var msg string
			if err := json.Unmarshal(rawMsg, &msg); err == nil {
				return &RemoteError{Action: action, Message: msg}
			}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}
