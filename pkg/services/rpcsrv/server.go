/*
Package rpcsrv implements the JSON-RPC 2.0 server exposing the counter
engine over HTTP and websocket transports.
*/
package rpcsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dankorotin/countergo/pkg/cell"
	"github.com/dankorotin/countergo/pkg/config"
	"github.com/dankorotin/countergo/pkg/core"
	"github.com/dankorotin/countergo/pkg/core/dao"
	"github.com/dankorotin/countergo/pkg/core/gas"
	"github.com/dankorotin/countergo/pkg/core/state"
	"github.com/dankorotin/countergo/pkg/counterrpc"
	"github.com/dankorotin/countergo/pkg/counterrpc/result"
	"github.com/dankorotin/countergo/pkg/encoding/address"
	"github.com/dankorotin/countergo/pkg/services/rpcsrv/params"
	"github.com/dankorotin/countergo/pkg/util"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Counter abstracts away the counter engine as used by the RPC server.
	Counter interface {
		Address() util.Uint160
		Config() config.ProtocolConfiguration
		ExecutionCount() (uint64, error)
		GetExecution(seq uint64) (*state.Execution, error)
		GetExecutions(start uint64, count int) ([]state.Execution, error)
		HandleMessage(msg *core.Message) (*state.Execution, error)
		RootCell() (*cell.Cell, error)
		SubscribeForExecutions(ch chan<- *state.Execution)
		UnsubscribeFromExecutions(ch chan<- *state.Execution)
		Total() (uint64, error)
	}

	// Server represents the JSON-RPC 2.0 server.
	Server struct {
		engine Counter
		config config.RPC

		log      *zap.Logger
		http     []*http.Server
		upgrader websocket.Upgrader
		shutdown chan struct{}
		started  *atomic.Bool
		errChan  chan<- error

		subsLock    sync.RWMutex
		subscribers map[*subscriber]bool

		subsCounterLock sync.RWMutex
		executionSubs   int

		executionCh       chan *state.Execution
		subEventsToExitCh chan struct{}
	}
)

const (
	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// Maximum size of a websocket request in bytes.
	wsReadLimit = 32 * 1024

	// Default maximum number of websocket clients per Server.
	defaultMaxWebSocketClients = 64

	// Maximum number of elements for getexecutions requests.
	maxExecutionsLimit = 1000
)

var rpcHandlers = map[string]func(*Server, params.Params) (interface{}, *counterrpc.Error){
	"getcount":        (*Server).getCount,
	"getcounterstate": (*Server).getCounterState,
	"getexecution":    (*Server).getExecution,
	"getexecutions":   (*Server).getExecutions,
	"getversion":      (*Server).getVersion,
	"sendincrement":   (*Server).sendIncrement,
	"sendrawmessage":  (*Server).sendRawMessage,
	"validateaddress": (*Server).validateAddress,
}

var rpcWsHandlers = map[string]func(*Server, params.Params, *subscriber) (interface{}, *counterrpc.Error){
	"subscribe":   (*Server).subscribe,
	"unsubscribe": (*Server).unsubscribe,
}

type (
	// abstract represents an abstract JSON-RPC 2.0 response, it differs
	// from counterrpc.Response in that Result can hold any object.
	abstract struct {
		counterrpc.HeaderAndError
		Result interface{} `json:"result,omitempty"`
	}
	// abstractBatch represents an abstract JSON-RPC 2.0 batch-response.
	abstractBatch []abstract

	// abstractResult is an interface which represents either single JSON-RPC 2.0 response
	// or batch JSON-RPC 2.0 response.
	abstractResult interface {
		RunForErrors(f func(jsonErr *counterrpc.Error))
	}
)

// RunForErrors implements the abstractResult interface.
func (a abstract) RunForErrors(f func(jsonErr *counterrpc.Error)) {
	if a.Error != nil {
		f(a.Error)
	}
}

// RunForErrors implements the abstractResult interface.
func (ab abstractBatch) RunForErrors(f func(jsonErr *counterrpc.Error)) {
	for _, a := range ab {
		if a.Error != nil {
			f(a.Error)
		}
	}
}

// New creates a new Server struct. Pay attention that orc is expected to be
// started before the RPC server.
func New(engine Counter, conf config.RPC, log *zap.Logger, errChan chan<- error) Server {
	addrs := conf.GetAddresses()
	httpServers := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		httpServers[i] = &http.Server{Addr: addr}
	}

	if conf.MaxWebSocketClients == 0 {
		conf.MaxWebSocketClients = defaultMaxWebSocketClients
		log.Info("MaxWebSocketClients is not set or wrong, setting default value", zap.Int("MaxWebSocketClients", defaultMaxWebSocketClients))
	}
	var wsOriginChecker func(*http.Request) bool
	if conf.EnableCORSWorkaround {
		wsOriginChecker = func(_ *http.Request) bool { return true }
	}
	return Server{
		engine: engine,
		config: conf,

		log:      log,
		http:     httpServers,
		upgrader: websocket.Upgrader{CheckOrigin: wsOriginChecker},
		shutdown: make(chan struct{}),
		started:  atomic.NewBool(false),
		errChan:  errChan,

		subscribers: make(map[*subscriber]bool),
		// Not buffered to preserve the original order of events.
		executionCh:       make(chan *state.Execution),
		subEventsToExitCh: make(chan struct{}),
	}
}

// Name returns the service name.
func (s *Server) Name() string {
	return "rpc"
}

// Start creates a new JSON-RPC server listening on the configured port. It
// creates goroutines needed internally and it returns its errors via errChan
// passed to New(). The Server only starts once, subsequent calls to Start
// are no-op.
func (s *Server) Start() {
	if !s.config.Enabled {
		s.log.Info("RPC server is not enabled")
		return
	}
	if !s.started.CAS(false, true) {
		s.log.Info("RPC server already started")
		return
	}

	go s.handleSubEvents()

	for _, srv := range s.http {
		srv.Handler = http.HandlerFunc(s.handleHTTPRequest)
		s.log.Info("starting rpc-server", zap.String("endpoint", srv.Addr))

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			s.errChan <- fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			return
		}
		srv.Addr = ln.Addr().String() // set Addr to the actual address
		go func(srv *http.Server) {
			err = srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("failed to start RPC server", zap.Error(err))
				s.errChan <- err
			}
		}(srv)
	}
}

// Shutdown stops the RPC server if it's running. It can only be called once,
// subsequent calls to Shutdown on the same instance are no-op. The instance
// that was stopped can not be started again by calling Start (use a new
// instance if needed).
func (s *Server) Shutdown() {
	if !s.started.CAS(true, false) {
		return
	}
	// Signal to websocket writer routines and handleSubEvents.
	close(s.shutdown)

	for _, srv := range s.http {
		s.log.Info("shutting down RPC server", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			s.log.Warn("error during RPC (http) server shutdown", zap.Error(err))
		}
	}

	// Wait for handleSubEvents to finish.
	<-s.subEventsToExitCh
}

// Addresses returns the list of actual addresses the server listens on, it's
// only valid after Start.
func (s *Server) Addresses() []string {
	addrs := make([]string, len(s.http))
	for i, srv := range s.http {
		addrs[i] = srv.Addr
	}
	return addrs
}

func (s *Server) handleHTTPRequest(w http.ResponseWriter, httpRequest *http.Request) {
	// Restrict request body before further processing.
	httpRequest.Body = http.MaxBytesReader(w, httpRequest.Body, wsReadLimit)
	req := params.NewRequest()

	if httpRequest.URL.Path == "/ws" && httpRequest.Method == "GET" {
		// Technically there is a race between this check and
		// s.subscribers modification 5 lines below, but it's tiny and
		// not really critical to bother with it. Some additional connections
		// may be processed in edge cases, but it's still better than
		// using a global lock for all of them.
		s.subsLock.RLock()
		numOfSubs := len(s.subscribers)
		s.subsLock.RUnlock()
		if numOfSubs >= s.config.MaxWebSocketClients {
			s.writeHTTPErrorResponse(
				params.NewIn(),
				w,
				counterrpc.NewInternalServerError("websocket users limit reached"),
			)
			return
		}
		ws, err := s.upgrader.Upgrade(w, httpRequest, nil)
		if err != nil {
			s.log.Info("websocket connection upgrade failed", zap.Error(err))
			return
		}
		resChan := make(chan abstractResult) // response.abstract or response.abstractBatch
		subChan := make(chan intEvent, notificationBufSize)
		subscr := &subscriber{writer: subChan}
		s.subsLock.Lock()
		s.subscribers[subscr] = true
		s.subsLock.Unlock()
		go s.handleWsWrites(ws, resChan, subChan)
		s.handleWsReads(ws, resChan, subscr)
		return
	}

	if httpRequest.Method == "OPTIONS" && s.config.EnableCORSWorkaround { // Preflight CORS.
		setCORSOriginHeaders(w.Header())
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST") // GET for websockets.
		w.Header().Set("Access-Control-Max-Age", "21600")           // 6 hours.
		return
	}

	if httpRequest.Method != "POST" {
		s.writeHTTPErrorResponse(
			params.NewIn(),
			w,
			counterrpc.NewInvalidParamsError(fmt.Sprintf("invalid method '%s', please retry with 'POST'", httpRequest.Method)),
		)
		return
	}

	err := req.DecodeData(httpRequest.Body)
	if err != nil {
		s.writeHTTPErrorResponse(params.NewIn(), w, counterrpc.NewParseError(err.Error()))
		return
	}

	resp := s.handleRequest(req, nil)
	s.writeHTTPServerResponse(req, w, resp)
}

func (s *Server) handleRequest(req *params.Request, sub *subscriber) abstractResult {
	if req.In != nil {
		req.In.Method = escapeForLog(req.In.Method) // No valid method name will be changed by it.
		return s.handleIn(req.In, sub)
	}
	resp := make(abstractBatch, len(req.Batch))
	for i, in := range req.Batch {
		in.Method = escapeForLog(in.Method) // No valid method name will be changed by it.
		resp[i] = s.handleIn(&in, sub)
	}
	return resp
}

func (s *Server) handleIn(req *params.In, sub *subscriber) abstract {
	var res interface{}
	var resErr *counterrpc.Error
	if req.JSONRPC != counterrpc.JSONRPCVersion {
		return s.packResponse(req, nil, counterrpc.NewInvalidParamsError(fmt.Sprintf("problem parsing JSON: invalid version, expected 2.0 got '%s'", req.JSONRPC)))
	}

	reqParams := params.Params(req.RawParams)

	s.log.Debug("processing rpc request",
		zap.String("method", req.Method),
		zap.Stringer("params", reqParams))

	start := time.Now()
	defer func() { addReqTimeMetric(req.Method, time.Since(start)) }()

	resErr = counterrpc.NewMethodNotFoundError(fmt.Sprintf("method %q not supported", req.Method))
	handler, ok := rpcHandlers[req.Method]
	if ok {
		res, resErr = handler(s, reqParams)
	} else if sub != nil {
		handler, ok := rpcWsHandlers[req.Method]
		if ok {
			res, resErr = handler(s, reqParams, sub)
		}
	}
	return s.packResponse(req, res, resErr)
}

func (s *Server) handleWsWrites(ws *websocket.Conn, resChan <-chan abstractResult, subChan <-chan intEvent) {
	pingTicker := time.NewTicker(wsPingPeriod)
eventloop:
	for {
		select {
		case <-s.shutdown:
			break eventloop
		case event, ok := <-subChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WritePreparedMessage(event.msg); err != nil {
				break eventloop
			}
		case res, ok := <-resChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteJSON(res); err != nil {
				break eventloop
			}
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				break eventloop
			}
		}
	}
	ws.Close()
	pingTicker.Stop()
	// Drain notification channel as there might be some goroutines blocked
	// on it.
drainloop:
	for {
		select {
		case _, ok := <-subChan:
			if !ok {
				break drainloop
			}
		default:
			break drainloop
		}
	}
}

func (s *Server) handleWsReads(ws *websocket.Conn, resChan chan<- abstractResult, subscr *subscriber) {
	ws.SetReadLimit(wsReadLimit)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
requestloop:
	for err == nil {
		req := params.NewRequest()
		err := ws.ReadJSON(req)
		if err != nil {
			break
		}
		res := s.handleRequest(req, subscr)
		res.RunForErrors(func(jsonErr *counterrpc.Error) {
			s.logRequestError(req, jsonErr)
		})
		select {
		case <-s.shutdown:
			break requestloop
		case resChan <- res:
		}
	}

	s.subsLock.Lock()
	delete(s.subscribers, subscr)
	s.subsLock.Unlock()
	s.subsCounterLock.Lock()
	for _, e := range subscr.feeds {
		if e != counterrpc.InvalidEventID {
			s.unsubscribeFromChannel(e)
		}
	}
	s.subsCounterLock.Unlock()
	close(resChan)
	ws.Close()
}

func (s *Server) getCount(_ params.Params) (interface{}, *counterrpc.Error) {
	total, err := s.engine.Total()
	if err != nil {
		return nil, counterrpc.NewInternalServerError(err.Error())
	}
	return total, nil
}

func (s *Server) getCounterState(_ params.Params) (interface{}, *counterrpc.Error) {
	total, err := s.engine.Total()
	if err != nil {
		return nil, counterrpc.NewInternalServerError(err.Error())
	}
	count, err := s.engine.ExecutionCount()
	if err != nil {
		return nil, counterrpc.NewInternalServerError(err.Error())
	}
	root, err := s.engine.RootCell()
	if err != nil {
		return nil, counterrpc.NewInternalServerError(err.Error())
	}
	return &result.CounterState{
		Address:        address.Uint160ToString(s.engine.Address()),
		Total:          total,
		Executions:     count,
		RootHash:       root.Hash(),
		RootBits:       root.BitLen(),
		StorageVersion: dao.Version,
	}, nil
}

func (s *Server) getExecution(reqParams params.Params) (interface{}, *counterrpc.Error) {
	seq, err := reqParams.Value(0).GetUint64()
	if err != nil {
		return nil, counterrpc.NewInvalidParamsError(err.Error())
	}
	exec, err := s.engine.GetExecution(seq)
	if err != nil {
		return nil, counterrpc.NewInternalServerError(fmt.Sprintf("failed to get execution: %s", err))
	}
	return exec, nil
}

func (s *Server) getExecutions(reqParams params.Params) (interface{}, *counterrpc.Error) {
	var (
		start uint64
		count = maxExecutionsLimit
		err   error
	)
	if p := reqParams.Value(0); p != nil {
		start, err = p.GetUint64()
		if err != nil {
			return nil, counterrpc.NewInvalidParamsError(err.Error())
		}
	}
	if p := reqParams.Value(1); p != nil {
		count, err = p.GetInt()
		if err != nil {
			return nil, counterrpc.NewInvalidParamsError(err.Error())
		}
		if count <= 0 || count > maxExecutionsLimit {
			return nil, counterrpc.NewInvalidParamsError(fmt.Sprintf("count should be between 1 and %d", maxExecutionsLimit))
		}
	}
	execs, err := s.engine.GetExecutions(start, count)
	if err != nil {
		return nil, counterrpc.NewInternalServerError(fmt.Sprintf("failed to get executions: %s", err))
	}
	return execs, nil
}

func (s *Server) getVersion(_ params.Params) (interface{}, *counterrpc.Error) {
	cfg := s.engine.Config()
	return &result.Version{
		UserAgent: config.UserAgent(),
		Protocol: result.Protocol{
			InitialTotal: cfg.InitialTotal,
			GasLimit:     cfg.GasLimit,
		},
	}, nil
}

func (s *Server) sendIncrement(reqParams params.Params) (interface{}, *counterrpc.Error) {
	delta, err := reqParams.Value(0).GetUint16()
	if err != nil {
		return nil, counterrpc.NewInvalidParamsError(err.Error())
	}
	b := cell.NewBuilder()
	if err := b.WriteUint(uint64(delta), core.DeltaBits); err != nil {
		return nil, counterrpc.NewInternalServerError(err.Error())
	}
	return s.handleMessage(core.NewMessage(b.Build()))
}

func (s *Server) sendRawMessage(reqParams params.Params) (interface{}, *counterrpc.Error) {
	data, err := reqParams.Value(0).GetBytesBase64()
	if err != nil {
		return nil, counterrpc.NewInvalidParamsError(err.Error())
	}
	body, err := cell.DecodeBag(data)
	if err != nil {
		return nil, counterrpc.NewInvalidParamsError(fmt.Sprintf("failed to decode message body: %s", err))
	}
	return s.handleMessage(core.NewMessage(body))
}

func (s *Server) handleMessage(msg *core.Message) (interface{}, *counterrpc.Error) {
	exec, err := s.engine.HandleMessage(msg)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return exec, nil
}

// mapEngineError translates engine errors into the distinguished
// application-level RPC codes.
func mapEngineError(err error) *counterrpc.Error {
	switch {
	case errors.Is(err, core.ErrPrecondition):
		return counterrpc.NewPreconditionFailedError(err.Error())
	case errors.Is(err, core.ErrIntOverflow):
		return counterrpc.NewOverflowError(err.Error())
	case errors.Is(err, gas.ErrOutOfGas):
		return counterrpc.NewOutOfGasError(err.Error())
	default:
		return counterrpc.NewInternalServerError(err.Error())
	}
}

func (s *Server) validateAddress(reqParams params.Params) (interface{}, *counterrpc.Error) {
	param := reqParams.Value(0)
	if param == nil {
		return nil, counterrpc.ErrInvalidParams
	}
	var res result.ValidateAddress
	js, _ := json.Marshal(param)
	_ = json.Unmarshal(js, &res.Address)
	if str, err := param.GetString(); err == nil {
		_, err := address.StringToUint160(str)
		res.IsValid = err == nil
	}
	return res, nil
}

// subscribe handles subscription requests from websocket clients.
func (s *Server) subscribe(reqParams params.Params, sub *subscriber) (interface{}, *counterrpc.Error) {
	streamName, err := reqParams.Value(0).GetString()
	if err != nil {
		return nil, counterrpc.ErrInvalidParams
	}
	event := counterrpc.EventID(streamName)
	if !counterrpc.ValidEventID(event) {
		return nil, counterrpc.NewInvalidParamsError(fmt.Sprintf("unknown event stream %q", streamName))
	}

	s.subsLock.Lock()
	var id int
	for ; id < len(sub.feeds); id++ {
		if sub.feeds[id] == counterrpc.InvalidEventID {
			break
		}
	}
	if id == len(sub.feeds) {
		s.subsLock.Unlock()
		return nil, counterrpc.NewInternalServerError("maximum number of subscriptions is reached")
	}
	sub.feeds[id] = event
	s.subsLock.Unlock()

	s.subsCounterLock.Lock()
	s.subscribeToChannel(event)
	s.subsCounterLock.Unlock()
	return strconv.Itoa(id), nil
}

// subscribeToChannel subscribes to the execution events of the engine if
// needed, it's supposed to be called with subsCounterLock taken by the
// caller.
func (s *Server) subscribeToChannel(event counterrpc.EventID) {
	if event == counterrpc.ExecutionEventID {
		if s.executionSubs == 0 {
			s.engine.SubscribeForExecutions(s.executionCh)
		}
		s.executionSubs++
	}
}

// unsubscribe handles unsubscription requests from websocket clients.
func (s *Server) unsubscribe(reqParams params.Params, sub *subscriber) (interface{}, *counterrpc.Error) {
	id, err := reqParams.Value(0).GetInt()
	if err != nil || id < 0 {
		return nil, counterrpc.ErrInvalidParams
	}
	s.subsLock.Lock()
	if id >= len(sub.feeds) || sub.feeds[id] == counterrpc.InvalidEventID {
		s.subsLock.Unlock()
		return nil, counterrpc.ErrInvalidParams
	}
	event := sub.feeds[id]
	sub.feeds[id] = counterrpc.InvalidEventID
	s.subsLock.Unlock()

	s.subsCounterLock.Lock()
	s.unsubscribeFromChannel(event)
	s.subsCounterLock.Unlock()
	return true, nil
}

// unsubscribeFromChannel unsubscribes from the engine events if needed,
// it's supposed to be called with subsCounterLock taken by the caller.
func (s *Server) unsubscribeFromChannel(event counterrpc.EventID) {
	if event == counterrpc.ExecutionEventID {
		s.executionSubs--
		if s.executionSubs == 0 {
			s.engine.UnsubscribeFromExecutions(s.executionCh)
		}
	}
}

// handleSubEvents pumps engine events into websocket subscriber channels.
func (s *Server) handleSubEvents() {
chloop:
	for {
		var resp = counterrpc.Notification{
			JSONRPC: counterrpc.JSONRPCVersion,
			Payload: make([]interface{}, 1),
		}
		select {
		case <-s.shutdown:
			break chloop
		case exec := <-s.executionCh:
			resp.Event = counterrpc.ExecutionEventID
			resp.Payload[0] = exec
		}
		msg, err := json.Marshal(resp)
		if err != nil {
			s.log.Error("failed to marshal notification",
				zap.Error(err),
				zap.String("type", string(resp.Event)))
			continue
		}
		pmsg, err := websocket.NewPreparedMessage(websocket.TextMessage, msg)
		if err != nil {
			s.log.Error("failed to prepare notification message",
				zap.Error(err),
				zap.String("type", string(resp.Event)))
			continue
		}
		s.subsLock.RLock()
	subloop:
		for sub := range s.subscribers {
			if sub.overflown.Load() {
				continue
			}
			for i := range sub.feeds {
				if sub.feeds[i] == resp.Event {
					select {
					case sub.writer <- intEvent{pmsg, &resp}:
					default:
						// Subscriber is too slow, it will be
						// disconnected once it reads what's
						// already in the channel.
						sub.overflown.Store(true)
					}
					continue subloop
				}
			}
		}
		s.subsLock.RUnlock()
	}
	// The engine may be parked delivering an event, so keep draining the
	// channel until unsubscription is complete.
	unsubDone := make(chan struct{})
	go func() {
		s.subsCounterLock.Lock()
		if s.executionSubs != 0 {
			s.engine.UnsubscribeFromExecutions(s.executionCh)
		}
		s.subsCounterLock.Unlock()
		close(unsubDone)
	}()
unsubloop:
	for {
		select {
		case <-s.executionCh:
		case <-unsubDone:
			break unsubloop
		}
	}
	// Drain anything left over from deliveries that started before the
	// unsubscription took effect.
drainloop:
	for {
		select {
		case <-s.executionCh:
		default:
			break drainloop
		}
	}
	close(s.subEventsToExitCh)
}

func (s *Server) packResponse(r *params.In, result interface{}, respErr *counterrpc.Error) abstract {
	resp := abstract{
		HeaderAndError: counterrpc.HeaderAndError{
			Header: counterrpc.Header{
				JSONRPC: r.JSONRPC,
				ID:      r.RawID,
			},
		},
	}
	if respErr != nil {
		resp.Error = respErr
	} else {
		resp.Result = result
	}
	return resp
}

// logRequestError is a request error logger.
func (s *Server) logRequestError(req *params.Request, jsonErr *counterrpc.Error) {
	logFields := []zap.Field{
		zap.Int64("code", jsonErr.Code),
	}
	if len(jsonErr.Data) != 0 {
		logFields = append(logFields, zap.String("cause", jsonErr.Data))
	}

	if req.In != nil {
		logFields = append(logFields, zap.String("method", req.In.Method))
		params := params.Params(req.In.RawParams)
		logFields = append(logFields, zap.Any("params", params))
	}

	logText := "Error encountered with rpc request"
	switch jsonErr.Code {
	case counterrpc.InternalServerErrorCode:
		s.log.Error(logText, logFields...)
	default:
		s.log.Info(logText, logFields...)
	}
}

// writeHTTPErrorResponse writes an error response to the ResponseWriter.
func (s *Server) writeHTTPErrorResponse(r *params.In, w http.ResponseWriter, jsonErr *counterrpc.Error) {
	resp := s.packResponse(r, nil, jsonErr)
	s.writeHTTPServerResponse(&params.Request{In: r}, w, resp)
}

func setCORSOriginHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
}

func (s *Server) writeHTTPServerResponse(r *params.Request, w http.ResponseWriter, resp abstractResult) {
	// Errors can happen in many places and we can only catch ALL of them here.
	resp.RunForErrors(func(jsonErr *counterrpc.Error) {
		s.logRequestError(r, jsonErr)
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if s.config.EnableCORSWorkaround {
		setCORSOriginHeaders(w.Header())
	}

	encoder := json.NewEncoder(w)
	err := encoder.Encode(resp)

	if err != nil {
		switch {
		case r.In != nil:
			s.log.Error("Error encountered while encoding response",
				zap.String("err", err.Error()),
				zap.String("method", r.In.Method))
		case r.Batch != nil:
			s.log.Error("Error encountered while encoding batch response",
				zap.String("err", err.Error()))
		}
	}
}

// escapeForLog removes control characters from the given string, other
// characters are kept as is.
func escapeForLog(in string) string {
	return strings.Map(func(c rune) rune {
		if !strconv.IsGraphic(c) {
			return -1
		}
		return c
	}, in)
}
