package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	jsonrpc "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

const (
	sendTimeout = 10 * time.Second
	// the rpc server closes connections without pings after 30s
	pingPeriod = (30 * 9 / 10) * time.Second
)

const (
	modePropose = "propose"
	modeTx      = "tx"
)

// transacter sends requests over websocket connections at a fixed rate. In
// propose mode every request proposes a block, in tx mode it checks one
// transaction into the mempool.
type transacter struct {
	Target      string
	Mode        string
	Rate        int // requests per second and connection
	Connections int
	TxsPerBlock int
	TxSize      int

	conns       []*websocket.Conn
	connsBroken []bool
	startingWg  sync.WaitGroup
	endingWg    sync.WaitGroup
	stopped     int32

	sent    int64
	replies int64

	mtx        sync.Mutex
	sendMillis []float64 // time to send one second worth of requests

	logger log.Logger
}

func newTransacter(target, mode string, connections, rate, txsPerBlock, txSize int) *transacter {
	return &transacter{
		Target:      target,
		Mode:        mode,
		Rate:        rate,
		Connections: connections,
		TxsPerBlock: txsPerBlock,
		TxSize:      txSize,
		conns:       make([]*websocket.Conn, connections),
		connsBroken: make([]bool, connections),
		logger:      log.NewNopLogger(),
	}
}

// SetLogger lets you set your own logger
func (t *transacter) SetLogger(l log.Logger) {
	t.logger = l
}

// Start opens N = `t.Connections` connections to the target and creates read
// and write goroutines for each connection.
func (t *transacter) Start() error {
	atomic.StoreInt32(&t.stopped, 0)
	rand.Seed(time.Now().UnixNano())

	for i := 0; i < t.Connections; i++ {
		c, _, err := connect(t.Target)
		if err != nil {
			return err
		}
		t.conns[i] = c
	}

	t.startingWg.Add(t.Connections)
	t.endingWg.Add(2 * t.Connections)
	for i := 0; i < t.Connections; i++ {
		go t.sendLoop(i)
		go t.receiveLoop(i)
	}

	t.startingWg.Wait()
	return nil
}

// Stop closes the connections.
func (t *transacter) Stop() {
	atomic.StoreInt32(&t.stopped, 1)
	t.endingWg.Wait()
	for _, c := range t.conns {
		c.Close()
	}
}

func (t *transacter) isStopped() bool {
	return atomic.LoadInt32(&t.stopped) == 1
}

// Stats returns the requests sent and the replies read.
func (t *transacter) Stats() (sent, replies int64) {
	return atomic.LoadInt64(&t.sent), atomic.LoadInt64(&t.replies)
}

// SendMillis returns how long each batch of Rate requests took to send.
func (t *transacter) SendMillis() []float64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	millis := make([]float64, len(t.sendMillis))
	copy(millis, t.sendMillis)
	return millis
}

func (t *transacter) recordSend(d time.Duration) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.sendMillis = append(t.sendMillis, float64(d)/float64(time.Millisecond))
}

// request builds the next rpc request of the configured mode.
func (t *transacter) request() (jsonrpc.RPCRequest, error) {
	var (
		method string
		params interface{}
	)
	switch t.Mode {
	case modeTx:
		method, params = "broadcast_tx", map[string]interface{}{"tx": generateTxs(1, t.TxSize)[0]}
	default:
		method, params = "propose_block", map[string]interface{}{"txs": generateTxs(t.TxsPerBlock, t.TxSize)}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return jsonrpc.RPCRequest{}, err
	}
	return jsonrpc.RPCRequest{
		JSONRPC: "2.0",
		ID:      jsonrpc.JSONRPCStringID("graph-bench"),
		Method:  method,
		Params:  json.RawMessage(paramsJSON),
	}, nil
}

func (t *transacter) receiveLoop(connIndex int) {
	c := t.conns[connIndex]
	defer t.endingWg.Done()
	for {
		_, _, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.logger.Error(
					fmt.Sprintf("failed to read response on conn %d", connIndex),
					"err",
					err,
				)
			}
			return
		}
		atomic.AddInt64(&t.replies, 1)
		if t.isStopped() || t.connsBroken[connIndex] {
			return
		}
	}
}

func (t *transacter) sendLoop(connIndex int) {
	started := false
	// Close the starting waitgroup, in the event that this fails to start
	defer func() {
		if !started {
			t.startingWg.Done()
		}
	}()
	c := t.conns[connIndex]

	c.SetPingHandler(func(message string) error {
		err := c.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(sendTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		} else if e, ok := err.(net.Error); ok && e.Temporary() {
			return nil
		}
		return err
	})

	logger := t.logger.With("addr", c.RemoteAddr())

	pingsTicker := time.NewTicker(pingPeriod)
	proposeTicker := time.NewTicker(1 * time.Second)
	defer func() {
		pingsTicker.Stop()
		proposeTicker.Stop()
		t.endingWg.Done()
	}()

	for {
		select {
		case <-proposeTicker.C:
			startTime := time.Now()
			if !started {
				t.startingWg.Done()
				started = true
			}

			for i := 0; i < t.Rate; i++ {
				req, err := t.request()
				if err != nil {
					logger.Error("failed to encode params", "err", err)
					t.connsBroken[connIndex] = true
					return
				}

				c.SetWriteDeadline(time.Now().Add(sendTimeout))
				if err := c.WriteJSON(req); err != nil {
					err = errors.Wrap(err,
						fmt.Sprintf("%s send failed on connection #%d", req.Method, connIndex))
					t.connsBroken[connIndex] = true
					logger.Error(err.Error())
					return
				}
				atomic.AddInt64(&t.sent, 1)
			}

			timeToSend := time.Since(startTime)
			t.recordSend(timeToSend)
			logger.Info(fmt.Sprintf("sent %d requests", t.Rate), "took", timeToSend)

		case <-pingsTicker.C:
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := c.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				err = errors.Wrap(err,
					fmt.Sprintf("failed to write ping message on conn #%d", connIndex))
				logger.Error(err.Error())
				t.connsBroken[connIndex] = true
			}
		}

		if t.isStopped() {
			// To cleanly close a connection, a client should send a close
			// frame and wait for the server to close the connection.
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				err = errors.Wrap(err,
					fmt.Sprintf("failed to write close message on conn #%d", connIndex))
				logger.Error(err.Error())
				t.connsBroken[connIndex] = true
			}
			return
		}
	}
}

func connect(host string) (*websocket.Conn, *http.Response, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/websocket"}
	return websocket.DefaultDialer.Dial(u.String(), nil)
}

// generateTxs returns n random payloads of size bytes.
func generateTxs(n, size int) [][]byte {
	txs := make([][]byte, n)
	for i := range txs {
		txs[i] = make([]byte, size)
		rand.Read(txs[i])
	}
	return txs
}
