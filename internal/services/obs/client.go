package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"easel/internal/logging"
	"easel/internal/services"
)

// Protocol opcodes defined by OBS WebSocket v5.
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

const (
	rpcVersion = 1
	// eventSubOutputs limits the subscription to output lifecycle events
	// (bit 6 of the EventSubscription mask).
	eventSubOutputs = 1 << 6

	outputStateStopped = "OBS_WEBSOCKET_OUTPUT_STOPPED"
	eventRecordState   = "RecordStateChanged"

	stageName = "record"
)

// ErrConnectionLost indicates the websocket dropped while work was in flight.
// The client must be reconnected before further requests.
var ErrConnectionLost = errors.New("obs connection lost; reconnect required")

// ErrStopPending indicates a stop waiter is already parked; only one stop may
// be awaited at a time.
var ErrStopPending = errors.New("record stop already in progress")

// Options configures a Client.
type Options struct {
	URL            string
	Password       string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Client is a control connection to an OBS WebSocket v5 server.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	pending    map[string]chan requestResponse
	stopWaiter chan stopResult
	closed     bool
}

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	RPCVersion     int `json:"rpcVersion"`
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestResponse struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

type eventData struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

type recordStateChanged struct {
	OutputActive bool   `json:"outputActive"`
	OutputState  string `json:"outputState"`
	OutputPath   string `json:"outputPath"`
}

type stopResult struct {
	outputPath string
	err        error
}

// NewClient constructs an unconnected client.
func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "obs"),
		pending: make(map[string]chan requestResponse),
	}
}

// Connect dials the server, completes the Hello/Identify handshake, and
// starts the reader loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.opts.URL, nil)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "connect",
			fmt.Sprintf("OBS is unreachable at %s; check that it is running with the websocket server enabled", c.opts.URL), err)
	}

	if err := c.handshake(conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	go c.readLoop(conn)
	c.logger.Info("connected", logging.String("url", c.opts.URL))
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	deadline := time.Now().Add(c.opts.ConnectTimeout)
	_ = conn.SetReadDeadline(deadline)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var hello envelope
	if err := conn.ReadJSON(&hello); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "handshake", "OBS did not send a Hello message", err)
	}
	if hello.Op != opHello {
		return services.Wrap(services.ErrExternalTool, stageName, "handshake",
			fmt.Sprintf("expected Hello (op %d), got op %d", opHello, hello.Op), nil)
	}

	var helloPayload helloData
	if err := json.Unmarshal(hello.D, &helloPayload); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "handshake", "malformed Hello payload", err)
	}

	identify := identifyData{RPCVersion: rpcVersion, EventSubscriptions: eventSubOutputs}
	if helloPayload.Authentication != nil {
		if c.opts.Password == "" {
			return services.Wrap(services.ErrConfiguration, stageName, "handshake",
				"OBS requires authentication but no password is configured", nil)
		}
		identify.Authentication = authToken(c.opts.Password, helloPayload.Authentication.Salt, helloPayload.Authentication.Challenge)
	}

	if err := conn.WriteJSON(envelope{Op: opIdentify, D: mustMarshal(identify)}); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "handshake", "failed to send Identify", err)
	}

	// A rejected Identify (OBS hangs up instead of answering) almost always
	// means a bad websocket password. Every later submission would fail the
	// same way, so this is classified fatal rather than retried.
	var identified envelope
	if err := conn.ReadJSON(&identified); err != nil {
		return services.Wrap(services.ErrFatal, stageName, "handshake",
			"OBS rejected the Identify message; check the websocket password", err)
	}
	if identified.Op != opIdentified {
		return services.Wrap(services.ErrExternalTool, stageName, "handshake",
			fmt.Sprintf("expected Identified (op %d), got op %d", opIdentified, identified.Op), nil)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			c.failInflight(err)
			return
		}
		switch msg.Op {
		case opRequestResponse:
			var resp requestResponse
			if err := json.Unmarshal(msg.D, &resp); err != nil {
				c.logger.Warn("malformed request response", logging.Error(err))
				continue
			}
			c.deliverResponse(resp)
		case opEvent:
			var event eventData
			if err := json.Unmarshal(msg.D, &event); err != nil {
				c.logger.Warn("malformed event", logging.Error(err))
				continue
			}
			c.handleEvent(event)
		}
	}
}

func (c *Client) deliverResponse(resp requestResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}

func (c *Client) handleEvent(event eventData) {
	if event.EventType != eventRecordState {
		return
	}
	var state recordStateChanged
	if err := json.Unmarshal(event.EventData, &state); err != nil {
		c.logger.Warn("malformed RecordStateChanged payload", logging.Error(err))
		return
	}
	c.logger.Debug("record state changed",
		logging.Bool("output_active", state.OutputActive),
		logging.String("output_state", state.OutputState))

	if state.OutputState != outputStateStopped {
		return
	}
	c.mu.Lock()
	waiter := c.stopWaiter
	c.stopWaiter = nil
	c.mu.Unlock()
	if waiter != nil {
		waiter <- stopResult{outputPath: state.OutputPath}
	}
}

func (c *Client) failInflight(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]chan requestResponse)
	waiter := c.stopWaiter
	c.stopWaiter = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	err := fmt.Errorf("%w: %v", ErrConnectionLost, cause)
	for _, ch := range pending {
		ch <- requestResponse{}
		close(ch)
	}
	if waiter != nil {
		waiter <- stopResult{err: err}
	}
	c.logger.Warn("connection lost", logging.Error(cause))
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]chan requestResponse)
	waiter := c.stopWaiter
	c.stopWaiter = nil
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	if waiter != nil {
		waiter <- stopResult{err: ErrConnectionLost}
	}
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Connected reports whether a live connection exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

func (c *Client) request(ctx context.Context, requestType string, payload any, out any) error {
	requestID := uuid.NewString()
	ch := make(chan requestResponse, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.closed {
		c.mu.Unlock()
		return services.Wrap(services.ErrTransient, stageName, requestType, "not connected to OBS", ErrConnectionLost)
	}
	c.pending[requestID] = ch
	c.mu.Unlock()

	req := envelope{Op: opRequest, D: mustMarshal(requestData{
		RequestType: requestType,
		RequestID:   requestID,
		RequestData: payload,
	})}
	if err := conn.WriteJSON(req); err != nil {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
		return services.Wrap(services.ErrTransient, stageName, requestType, "failed to send request", err)
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok || resp.RequestID == "" {
			return services.Wrap(services.ErrTransient, stageName, requestType, "connection lost awaiting response", ErrConnectionLost)
		}
		if !resp.RequestStatus.Result {
			return services.Wrap(services.ErrExternalTool, stageName, requestType,
				fmt.Sprintf("OBS refused the request (code %d): %s", resp.RequestStatus.Code, resp.RequestStatus.Comment), nil)
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return services.Wrap(services.ErrExternalTool, stageName, requestType, "malformed response payload", err)
			}
		}
		return nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
		return services.Wrap(services.ErrTimeout, stageName, requestType,
			fmt.Sprintf("OBS did not respond within %s", c.opts.RequestTimeout), nil)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// StartRecord begins recording.
func (c *Client) StartRecord(ctx context.Context) error {
	return c.request(ctx, "StartRecord", nil, nil)
}

// SetRecordDirectory points new recordings at the given directory, expressed
// in the OBS host's own path syntax (which may be a foreign OS).
func (c *Client) SetRecordDirectory(ctx context.Context, dir string) error {
	return c.request(ctx, "SetRecordDirectory", map[string]string{"recordDirectory": dir}, nil)
}

// RecordStatus reports whether an output is currently recording.
func (c *Client) RecordStatus(ctx context.Context) (bool, error) {
	var status struct {
		OutputActive bool `json:"outputActive"`
	}
	if err := c.request(ctx, "GetRecordStatus", nil, &status); err != nil {
		return false, err
	}
	return status.OutputActive, nil
}

// StopRecord asks the server to stop recording and waits for the
// RecordStateChanged event reporting the output fully stopped. It returns
// the recording path as reported by the OBS host. Only one stop may be
// awaited at a time.
func (c *Client) StopRecord(ctx context.Context, eventTimeout time.Duration) (string, error) {
	if eventTimeout <= 0 {
		eventTimeout = 30 * time.Second
	}

	waiter := make(chan stopResult, 1)
	c.mu.Lock()
	if c.stopWaiter != nil {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrValidation, stageName, "StopRecord", "a stop is already being awaited", ErrStopPending)
	}
	c.stopWaiter = waiter
	c.mu.Unlock()

	clearWaiter := func() {
		c.mu.Lock()
		if c.stopWaiter == waiter {
			c.stopWaiter = nil
		}
		c.mu.Unlock()
	}

	// The waiter is parked before the request goes out so a fast server
	// cannot emit the stopped event into a gap.
	if err := c.request(ctx, "StopRecord", nil, nil); err != nil {
		clearWaiter()
		return "", err
	}

	timer := time.NewTimer(eventTimeout)
	defer timer.Stop()
	select {
	case result := <-waiter:
		if result.err != nil {
			return "", services.Wrap(services.ErrTransient, stageName, "StopRecord", "connection lost awaiting stop event", result.err)
		}
		return result.outputPath, nil
	case <-timer.C:
		clearWaiter()
		return "", services.Wrap(services.ErrTimeout, stageName, "StopRecord",
			fmt.Sprintf("no stopped event within %s; the recording may still be finalizing", eventTimeout), nil)
	case <-ctx.Done():
		clearWaiter()
		return "", ctx.Err()
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
