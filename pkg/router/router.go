// Package router carries action messages between the page side and the
// download side. Each incoming request is handled on its own goroutine and
// answered exactly once with the caller's clientUid echoed back.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"comicgrabber/pkg/logger"
)

// ActionWarning is the action name of non-terminal notifications
const ActionWarning = "warning"

// Handler answers one request. The returned value is marshalled as the
// response data; a returned error is sent as {"error": "..."} instead.
type Handler func(ctx context.Context, data json.RawMessage, reply *Replier) (interface{}, error)

// Router dispatches messages to handlers registered by action name
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      logger.Logger
	wg       sync.WaitGroup
}

// New creates an empty router
func New(log logger.Logger) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		log:      logger.OrDefault(log).WithField("component", "router"),
	}
}

// Handle binds action to h, replacing any previous binding
func (r *Router) Handle(action string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Actions returns the bound action names
func (r *Router) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Serve reads requests from port until it is closed or ctx is cancelled.
// It waits for in-flight handlers before returning.
func (r *Router) Serve(ctx context.Context, port Port) error {
	defer r.wg.Wait()

	for {
		msg, err := port.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive: %w", err)
		}
		r.dispatch(ctx, port, msg)
	}
}

func (r *Router) dispatch(ctx context.Context, port Port, msg Message) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Action]
	r.mu.RUnlock()

	log := r.log.WithFields(map[string]interface{}{
		"action":    msg.Action,
		"clientUid": msg.ClientUID,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		var data interface{}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorWithFields("Panic in handler", map[string]interface{}{
						"recover": fmt.Sprint(rec),
						"stack":   string(debug.Stack()),
					})
					data = errorPayload{Error: fmt.Sprintf("internal error: %v", rec)}
				}
			}()

			if !ok {
				log.Warn("No handler for action")
				return
			}
			reply := &Replier{port: port, clientUID: msg.ClientUID, log: log}
			result, err := h(ctx, msg.Data, reply)
			if err != nil {
				log.WithError(err).Warn("Handler returned error")
				data = errorPayload{Error: err.Error()}
				return
			}
			data = result
		}()

		if err := send(ctx, port, msg.Action, msg.ClientUID, data); err != nil {
			log.WithError(err).Error("Failed to send response")
		}
	}()
}

type errorPayload struct {
	Error string `json:"error"`
}

func send(ctx context.Context, port Port, action, clientUID string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		raw, _ = json.Marshal(errorPayload{Error: fmt.Sprintf("encode response: %v", err)})
	}
	return port.Send(ctx, Message{Action: action, ClientUID: clientUID, Data: raw})
}

// Replier lets a handler emit notifications tied to its request before the
// final response
type Replier struct {
	port      Port
	clientUID string
	log       logger.Logger
}

// ClientUID returns the correlation id of the request being handled
func (r *Replier) ClientUID() string {
	return r.clientUID
}

// Notify sends a non-terminal message carrying the request's clientUid
func (r *Replier) Notify(ctx context.Context, action string, data interface{}) error {
	if err := send(ctx, r.port, action, r.clientUID, data); err != nil {
		r.log.WithError(err).Warn("Failed to send notification")
		return err
	}
	return nil
}
