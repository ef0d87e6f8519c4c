package navsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tidwall/gjson"

	"github.com/The-Promised-Neverland/navlink/internal/models"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const detachTimeout = 2 * time.Second

var errConnClosed = errors.New("chrome connection closed")

// Chrome follows the page targets of a running browser through its DevTools
// endpoint. debugURL may be the browser websocket address or the plain
// http://host:port of the debugging port.
//
// The browser and its tabs belong to the user. Chrome only attaches to
// existing pages and detaches again on shutdown; it never opens or closes a
// target.
type Chrome struct {
	fanout
	debugURL string
	client   *http.Client
}

func NewChrome(debugURL string) *Chrome {
	return &Chrome{debugURL: debugURL, client: http.DefaultClient}
}

// Run attaches to the browser and blocks until ctx is cancelled or the
// browser connection closes.
func (c *Chrome) Run(ctx context.Context) error {
	wsURL, err := c.browserURL(ctx)
	if err != nil {
		return fmt.Errorf("attach to chrome at %s: %w", c.debugURL, err)
	}
	conn, err := chromedp.DialContext(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("attach to chrome at %s: %w", c.debugURL, err)
	}
	return newDevtools(conn, c.emit).run(ctx, c.debugURL)
}

// browserURL resolves the browser websocket address, asking the debugging
// port for it when debugURL is an http address.
func (c *Chrome) browserURL(ctx context.Context) (string, error) {
	u, err := url.Parse(c.debugURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
		return c.debugURL, nil
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported debug url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Scheme+"://"+u.Host+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("json/version: %s", resp.Status)
	}
	raw := gjson.GetBytes(body, "webSocketDebuggerUrl").String()
	if raw == "" {
		return "", errors.New("json/version: no webSocketDebuggerUrl")
	}
	// Chrome reports its own idea of the host; keep the one we reached it on.
	ws, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	ws.Host = u.Host
	if u.Scheme == "https" {
		ws.Scheme = "wss"
	}
	return ws.String(), nil
}

// devtools is one browser-level DevTools connection with flat sessions
// for the attached pages.
type devtools struct {
	conn chromedp.Transport
	emit func(models.NavigationEvent)

	writeMu sync.Mutex
	next    int64

	mu       sync.Mutex
	pending  map[int64]chan *cdproto.Message
	tabs     map[target.ID]target.SessionID
	trackers map[target.SessionID]*tabTracker

	closed  chan struct{}
	workers sync.WaitGroup
}

func newDevtools(conn chromedp.Transport, emit func(models.NavigationEvent)) *devtools {
	return &devtools{
		conn:     conn,
		emit:     emit,
		pending:  make(map[int64]chan *cdproto.Message),
		tabs:     make(map[target.ID]target.SessionID),
		trackers: make(map[target.SessionID]*tabTracker),
		closed:   make(chan struct{}),
	}
}

func (d *devtools) run(ctx context.Context, debugURL string) error {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		d.read(ctx)
	}()
	defer func() {
		d.conn.Close()
		<-readDone
		d.workers.Wait()
	}()

	// Discovery reports every existing target as created, then new ones as
	// they open.
	if err := target.SetDiscoverTargets(true).Do(cdp.WithExecutor(ctx, d)); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("discover chrome targets: %w", err)
	}
	logger.Log.Info("Chrome navigation source attached", "url", debugURL)

	select {
	case <-ctx.Done():
		d.detachAll()
		return nil
	case <-d.closed:
		if ctx.Err() != nil {
			return nil
		}
		return errConnClosed
	}
}

func (d *devtools) read(ctx context.Context) {
	defer close(d.closed)
	for {
		msg := new(cdproto.Message)
		if err := d.conn.Read(ctx, msg); err != nil {
			return
		}
		switch {
		case msg.Method == "" && msg.ID != 0:
			d.mu.Lock()
			ch, ok := d.pending[msg.ID]
			d.mu.Unlock()
			if ok {
				ch <- msg
			}
		case msg.SessionID != "":
			d.mu.Lock()
			tracker := d.trackers[msg.SessionID]
			d.mu.Unlock()
			if tracker == nil {
				continue
			}
			if ev, err := cdproto.UnmarshalMessage(msg, chromedp.DefaultUnmarshalOptions); err == nil {
				tracker.handle(ev)
			}
		case msg.Method != "":
			ev, err := cdproto.UnmarshalMessage(msg, chromedp.DefaultUnmarshalOptions)
			if err != nil {
				logger.Log.Debug("Ignoring chrome event", "method", msg.Method, "err", err)
				continue
			}
			d.browserEvent(ctx, ev)
		}
	}
}

func (d *devtools) browserEvent(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if e.TargetInfo == nil || e.TargetInfo.Type != "page" {
			return
		}
		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			d.attach(ctx, e.TargetInfo.TargetID)
		}()
	case *target.EventTargetDestroyed:
		d.mu.Lock()
		if sid, ok := d.tabs[e.TargetID]; ok {
			delete(d.trackers, sid)
		}
		delete(d.tabs, e.TargetID)
		d.mu.Unlock()
	case *target.EventDetachedFromTarget:
		d.mu.Lock()
		delete(d.trackers, e.SessionID)
		for id, sid := range d.tabs {
			if sid == e.SessionID {
				delete(d.tabs, id)
			}
		}
		d.mu.Unlock()
	}
}

func (d *devtools) attach(ctx context.Context, id target.ID) {
	d.mu.Lock()
	if _, ok := d.tabs[id]; ok {
		d.mu.Unlock()
		return
	}
	d.tabs[id] = ""
	d.mu.Unlock()

	sid, err := target.AttachToTarget(id).WithFlatten(true).Do(cdp.WithExecutor(ctx, d))
	if err != nil {
		d.forget(id)
		if ctx.Err() == nil {
			logger.Log.Warn("Failed to follow chrome tab", "target", id, "err", err)
		}
		return
	}

	d.mu.Lock()
	if _, ok := d.tabs[id]; !ok {
		// Destroyed while attaching.
		d.mu.Unlock()
		return
	}
	d.tabs[id] = sid
	d.trackers[sid] = newTabTracker(d.emit)
	d.mu.Unlock()

	if err := page.Enable().Do(cdp.WithExecutor(ctx, session{d, sid})); err != nil {
		if ctx.Err() == nil {
			logger.Log.Warn("Failed to follow chrome tab", "target", id, "err", err)
		}
		return
	}
	logger.Log.Debug("Following chrome tab", "target", id, "session", sid)
}

func (d *devtools) forget(id target.ID) {
	d.mu.Lock()
	if sid, ok := d.tabs[id]; ok {
		delete(d.trackers, sid)
	}
	delete(d.tabs, id)
	d.mu.Unlock()
}

// detachAll leaves every followed page open in the browser.
func (d *devtools) detachAll() {
	d.mu.Lock()
	sessions := make([]target.SessionID, 0, len(d.tabs))
	for _, sid := range d.tabs {
		if sid != "" {
			sessions = append(sessions, sid)
		}
	}
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
	defer cancel()
	for _, sid := range sessions {
		err := target.DetachFromTarget().WithSessionID(sid).Do(cdp.WithExecutor(ctx, d))
		if err != nil {
			logger.Log.Debug("Failed to detach chrome session", "session", sid, "err", err)
		}
	}
}

// Execute sends a browser-level command.
func (d *devtools) Execute(ctx context.Context, method string, params, res any) error {
	return d.call(ctx, "", method, params, res)
}

func (d *devtools) call(ctx context.Context, sid target.SessionID, method string, params, res any) error {
	id := atomic.AddInt64(&d.next, 1)
	ch := make(chan *cdproto.Message, 1)
	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	var buf []byte
	if params != nil {
		var err error
		if buf, err = jsonv2.Marshal(params, chromedp.DefaultMarshalOptions); err != nil {
			return err
		}
	}
	d.writeMu.Lock()
	err := d.conn.Write(ctx, &cdproto.Message{
		ID:        id,
		SessionID: sid,
		Method:    cdproto.MethodType(method),
		Params:    buf,
	})
	d.writeMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return errConnClosed
	case msg := <-ch:
		switch {
		case msg.Error != nil:
			return msg.Error
		case res != nil:
			return jsonv2.Unmarshal(msg.Result, res, chromedp.DefaultUnmarshalOptions)
		}
		return nil
	}
}

// session sends commands to one attached page.
type session struct {
	d  *devtools
	id target.SessionID
}

func (s session) Execute(ctx context.Context, method string, params, res any) error {
	return s.d.call(ctx, s.id, method, params, res)
}

// tabTracker turns the page events of one tab into navigation events. A
// navigation completes on the load event that follows a main-frame commit;
// subframe commits and loads without a commit are ignored.
type tabTracker struct {
	mu      sync.Mutex
	url     string
	pending bool
	now     func() time.Time
	emit    func(models.NavigationEvent)
}

func newTabTracker(emit func(models.NavigationEvent)) *tabTracker {
	return &tabTracker{now: time.Now, emit: emit}
}

func (t *tabTracker) handle(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		t.mu.Lock()
		t.url = e.Frame.URL + e.Frame.URLFragment
		t.pending = true
		t.mu.Unlock()
	case *page.EventLoadEventFired:
		t.mu.Lock()
		if !t.pending {
			t.mu.Unlock()
			return
		}
		t.pending = false
		ev := models.NavigationEvent{URL: t.url, TimestampMillis: t.now().UnixMilli()}
		t.mu.Unlock()
		t.emit(ev)
	}
}
