package router

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrClosed is returned by a Port after it has been closed
var ErrClosed = errors.New("port closed")

// Message is the envelope carried across the context boundary
type Message struct {
	Action    string          `json:"action"`
	ClientUID string          `json:"clientUid,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Port is one end of a bidirectional message channel
type Port interface {
	// Receive blocks for the next message. It returns io.EOF or ErrClosed
	// once no more messages will arrive.
	Receive(ctx context.Context) (Message, error)
	Send(ctx context.Context, msg Message) error
	Close() error
}

type pipeEnd struct {
	in   <-chan Message
	out  chan<- Message
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected in-memory ports. Closing either end closes both.
func Pipe() (Port, Port) {
	ab := make(chan Message, 16)
	ba := make(chan Message, 16)
	done := make(chan struct{})
	once := &sync.Once{}
	return &pipeEnd{in: ba, out: ab, done: done, once: once},
		&pipeEnd{in: ab, out: ba, done: done, once: once}
}

func (p *pipeEnd) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// StreamPort speaks newline-delimited JSON over a reader and a writer, such
// as a process's stdin and stdout
type StreamPort struct {
	mu      sync.Mutex
	w       *bufio.Writer
	closer  io.Closer
	msgs    chan Message
	readErr error
	done    chan struct{}
	once    sync.Once
}

// NewStreamPort starts reading messages from r. w receives one JSON document
// per line. If w is an io.Closer it is closed by Close.
func NewStreamPort(r io.Reader, w io.Writer) *StreamPort {
	p := &StreamPort{
		w:    bufio.NewWriter(w),
		msgs: make(chan Message),
		done: make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		p.closer = c
	}
	go p.read(r)
	return p
}

func (p *StreamPort) read(r io.Reader) {
	defer close(p.msgs)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 32<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			p.readErr = fmt.Errorf("malformed message: %w", err)
			return
		}
		select {
		case p.msgs <- msg:
		case <-p.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		p.readErr = err
		return
	}
	p.readErr = io.EOF
}

func (p *StreamPort) Receive(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-p.msgs:
		if !ok {
			return Message{}, p.readErr
		}
		return msg, nil
	case <-p.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (p *StreamPort) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	if _, err := p.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return p.w.Flush()
}

func (p *StreamPort) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		if p.closer != nil {
			err = p.closer.Close()
		}
	})
	return err
}
