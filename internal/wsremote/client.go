// Package wsremote is a remote.Collaborator that talks to a hub over
// websocket.
package wsremote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/hub"
	"github.com/roach88/wedplan/internal/remote"
)

var errClosed = errors.New("hub connection closed")

// Client is a connected hub session. All collections share the one
// connection; snapshots are delivered on the read goroutine in arrival
// order.
type Client struct {
	cfg    Config
	conn   *websocket.Conn
	logger *slog.Logger
	names  map[string]bool

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan hub.Response
	listeners map[string]func([]entity.Record)
	err       error // set once the connection is gone

	done chan struct{}
}

var _ remote.Collaborator = (*Client)(nil)

// Dial validates cfg and connects. Connection failures are OFFLINE sync
// errors.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, remote.Unavailable("dial", "", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	endpoint, _ := cfg.endpoint()

	dctx, cancel := context.WithTimeout(ctx, cfg.dialTimeout())
	defer cancel()
	conn, _, err := websocket.Dial(dctx, endpoint, nil)
	if err != nil {
		return nil, remote.Offline("dial", "", err)
	}
	conn.SetReadLimit(8 << 20)

	names := map[string]bool{remote.SettingsCollection: true}
	for _, n := range entity.CollectionNames() {
		names[n] = true
	}

	c := &Client{
		cfg:       cfg,
		conn:      conn,
		logger:    logger.With("remote", endpoint),
		names:     names,
		pending:   make(map[string]chan hub.Response),
		listeners: make(map[string]func([]entity.Record)),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	c.logger.Info("connected to hub")
	return c, nil
}

// Collection implements remote.Collaborator.
func (c *Client) Collection(name string) (remote.Collection, bool) {
	if !c.names[name] {
		return nil, false
	}
	return &collection{client: c, name: name}, true
}

// Close ends the session.
func (c *Client) Close() error {
	c.fail(errClosed)
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	for {
		var resp hub.Response
		if err := wsjson.Read(context.Background(), c.conn, &resp); err != nil {
			c.fail(err)
			return
		}
		if resp.Type == hub.TypeSnapshot {
			c.mu.Lock()
			fn := c.listeners[resp.Listen]
			c.mu.Unlock()
			if fn != nil {
				fn(resp.Records)
			}
			continue
		}
		c.mu.Lock()
		ch := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- resp
		}
	}
}

// fail records the first connection error and releases every waiter.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	c.err = err
	pending := c.pending
	c.pending = make(map[string]chan hub.Response)
	c.listeners = make(map[string]func([]entity.Record))
	close(c.done)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	if !errors.Is(err, errClosed) {
		c.logger.Warn("hub connection lost", "error", err)
	}
}

// call sends req and waits for its reply.
func (c *Client) call(ctx context.Context, req hub.Request) (hub.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.requestTimeout())
		defer cancel()
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	op := string(req.Op)

	ch := make(chan hub.Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return hub.Response{}, remote.Offline(op, req.Collection, err)
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := wsjson.Write(ctx, c.conn, req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return hub.Response{}, remote.Offline(op, req.Collection, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return hub.Response{}, remote.Offline(op, req.Collection, errClosed)
		}
		if resp.Type == hub.TypeError {
			return resp, responseError(op, req.Collection, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return hub.Response{}, fmt.Errorf("%s %s: %w", op, req.Collection, ctx.Err())
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// responseError maps hub error codes onto the sync error taxonomy.
func responseError(op, collection string, body *hub.ErrorBody) error {
	if body == nil {
		return &remote.SyncError{Code: remote.CodeRemoteFailure, Op: op, Collection: collection}
	}
	cause := fmt.Errorf("%s: %s", body.Code, body.Message)
	switch body.Code {
	case hub.CodeDisabled:
		return remote.Disabled(op, collection, cause)
	case hub.CodeUnknownCollection:
		return remote.Unavailable(op, collection, cause)
	}
	return &remote.SyncError{Code: remote.CodeRemoteFailure, Op: op, Collection: collection, Err: cause}
}

// collection is the remote.Collection view of one hub collection.
type collection struct {
	client *Client
	name   string
}

func (c *collection) Listen(ctx context.Context, onRecords func([]entity.Record)) (func(), error) {
	id := uuid.NewString()
	c.client.mu.Lock()
	if c.client.err != nil {
		err := c.client.err
		c.client.mu.Unlock()
		return nil, remote.Offline("listen", c.name, err)
	}
	c.client.listeners[id] = onRecords
	c.client.mu.Unlock()

	if _, err := c.client.call(ctx, hub.Request{ID: id, Op: hub.OpListen, Collection: c.name}); err != nil {
		c.client.mu.Lock()
		delete(c.client.listeners, id)
		c.client.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.client.mu.Lock()
			delete(c.client.listeners, id)
			gone := c.client.err != nil
			c.client.mu.Unlock()
			if gone {
				return
			}
			// Fire and forget; the hub drops the listener with the
			// connection anyway.
			go func() {
				_, err := c.client.call(context.Background(), hub.Request{Op: hub.OpUnlisten, Collection: c.name, Listen: id})
				if err != nil {
					c.client.logger.Debug("unlisten failed", "collection", c.name, "error", err)
				}
			}()
		})
	}, nil
}

func (c *collection) Fetch(ctx context.Context) ([]entity.Record, error) {
	resp, err := c.client.call(ctx, hub.Request{Op: hub.OpFetch, Collection: c.name})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *collection) Add(ctx context.Context, id string, payload entity.Record) error {
	_, err := c.client.call(ctx, hub.Request{Op: hub.OpAdd, Collection: c.name, Doc: id, Payload: payload})
	return err
}

func (c *collection) Update(ctx context.Context, id string, changes entity.Record) error {
	_, err := c.client.call(ctx, hub.Request{Op: hub.OpUpdate, Collection: c.name, Doc: id, Payload: changes})
	return err
}

func (c *collection) Delete(ctx context.Context, id string) error {
	_, err := c.client.call(ctx, hub.Request{Op: hub.OpDelete, Collection: c.name, Doc: id})
	return err
}
