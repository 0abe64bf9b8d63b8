package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/roach88/wedplan/internal/docstore"
	"github.com/roach88/wedplan/internal/entity"
)

const (
	outboundBuffer = 256
	writeTimeout   = 5 * time.Second
)

// client is one websocket connection. Requests are handled in read order;
// responses and snapshots are written by a single writer goroutine.
type client struct {
	server *Server
	conn   *websocket.Conn
	out    chan Response

	mu        sync.Mutex
	listeners map[string]func()
	closed    bool
	done      chan struct{}
}

func newClient(s *Server, conn *websocket.Conn) *client {
	return &client{
		server:    s,
		conn:      conn,
		out:       make(chan Response, outboundBuffer),
		listeners: make(map[string]func()),
		done:      make(chan struct{}),
	}
}

// serve runs until the connection fails or ctx ends.
func (c *client) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)
	defer c.close(websocket.StatusNormalClosure, "")

	for {
		var req Request
		if err := wsjson.Read(ctx, c.conn, &req); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.server.logger.Debug("client read failed", "error", err)
			}
			return
		}
		start := time.Now()
		resp := c.handle(ctx, req)
		status := "ok"
		if resp.Error != nil {
			status = resp.Error.Code
		}
		if m := c.server.cfg.Metrics; m != nil {
			m.ObserveRequest(string(req.Op), status, time.Since(start))
		}
		if !c.send(resp) {
			return
		}
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case resp := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, resp)
			cancel()
			if err != nil {
				c.server.logger.Debug("client write failed", "error", err)
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// send queues resp without blocking. A client that cannot keep up is
// disconnected rather than stalling writers for everyone else.
func (c *client) send(resp Response) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}
	select {
	case c.out <- resp:
		return true
	default:
		c.server.logger.Warn("client too slow, disconnecting")
		go c.close(websocket.StatusPolicyViolation, "slow consumer")
		return false
	}
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	listeners := c.listeners
	c.listeners = make(map[string]func())
	close(c.done)
	c.mu.Unlock()

	for _, unsubscribe := range listeners {
		unsubscribe()
	}
	_ = c.conn.Close(code, reason)
}

func (c *client) handle(ctx context.Context, req Request) Response {
	if req.ID == "" {
		return errorResponse(req, CodeBadRequest, "request id is required")
	}
	if req.Op == OpUnlisten {
		c.unlisten(req.Listen)
		return Response{ID: req.ID, Type: TypeAck}
	}

	coll, ok := c.server.docs.Lookup(req.Collection)
	if !ok {
		return errorResponse(req, CodeUnknownCollection, "unknown collection "+req.Collection)
	}

	var err error
	switch req.Op {
	case OpListen:
		err = c.listen(ctx, req, coll)
	case OpFetch:
		records, ferr := coll.Fetch(ctx)
		if ferr != nil {
			return failure(req, ferr)
		}
		return Response{ID: req.ID, Type: TypeAck, Collection: req.Collection, Records: records}
	case OpAdd:
		err = coll.Add(ctx, req.Doc, req.Payload)
	case OpUpdate:
		err = coll.Update(ctx, req.Doc, req.Payload)
	case OpDelete:
		err = coll.Delete(ctx, req.Doc)
	default:
		return errorResponse(req, CodeBadRequest, "unknown op "+string(req.Op))
	}
	if err != nil {
		return failure(req, err)
	}
	return Response{ID: req.ID, Type: TypeAck, Collection: req.Collection}
}

func (c *client) listen(ctx context.Context, req Request, coll *docstore.Collection) error {
	name := coll.Name()
	unsubscribe, err := coll.Listen(ctx, func(records []entity.Record) {
		if m := c.server.cfg.Metrics; m != nil {
			m.ObserveBroadcast(name, 1)
		}
		c.send(Response{Type: TypeSnapshot, Listen: req.ID, Collection: name, Records: records})
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	if previous, ok := c.listeners[req.ID]; ok {
		previous()
	}
	c.listeners[req.ID] = unsubscribe
	c.mu.Unlock()
	return nil
}

func (c *client) unlisten(id string) {
	c.mu.Lock()
	unsubscribe, ok := c.listeners[id]
	delete(c.listeners, id)
	c.mu.Unlock()
	if ok {
		unsubscribe()
	}
}

func failure(req Request, err error) Response {
	switch {
	case errors.Is(err, docstore.ErrReadOnly):
		return errorResponse(req, CodeDisabled, err.Error())
	case errors.Is(err, docstore.ErrNotFound):
		return errorResponse(req, CodeNotFound, err.Error())
	}
	return errorResponse(req, CodeInternal, err.Error())
}

func errorResponse(req Request, code, message string) Response {
	return Response{
		ID:         req.ID,
		Type:       TypeError,
		Collection: req.Collection,
		Error:      &ErrorBody{Code: code, Message: message},
	}
}
