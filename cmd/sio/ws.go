/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/Comcast/uimachine/crew"
	"github.com/Comcast/uimachine/sio"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// WebSocketCouplings is an sio.Couplings for a WebSocket client.
// Each text message heard is an input message, and each emitted
// event (and, optionally, each Result's changes) is written back.
type WebSocketCouplings struct {
	URL              string
	HandshakeTimeout time.Duration
	Updates          bool

	sio.JSONStore

	logger *zap.Logger

	in   chan interface{}
	out  chan *sio.Result
	done chan bool

	wmu  sync.Mutex
	conn *websocket.Conn
}

func NewWebSocketCouplings(args []string, logger *zap.Logger) (*WebSocketCouplings, *flag.FlagSet) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &WebSocketCouplings{
		logger: logger.With(zap.String("io", "ws")),
	}
	fs := flag.NewFlagSet("ws", flag.ExitOnError)
	fs.StringVar(&c.URL, "url", "ws://localhost:8080", "Target URL for WebSocket server")
	fs.DurationVar(&c.HandshakeTimeout, "handshake-timeout", 10*time.Second, "WebSocket handshake timeout")
	fs.BoolVar(&c.Updates, "updates", false, "Write machine changes too")
	if args == nil {
		return nil, fs
	}
	fs.Parse(args)
	return c, fs
}

// Start creates the WebSocket session and starts processing it.
func (c *WebSocketCouplings) Start(ctx context.Context) error {

	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}

	c.in = make(chan interface{})
	c.out = make(chan *sio.Result)
	c.done = make(chan bool)
	c.Open()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return err
	}
	dialer := &websocket.Dialer{
		Jar:              jar,
		HandshakeTimeout: c.HandshakeTimeout,
	}

	c.logger.Info("connecting", zap.String("url", u.String()))
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn

	go func() {
		defer close(c.done)
		for {
			_, bs, err := conn.ReadMessage()
			if err != nil {
				c.logger.Info("read", zap.Error(err))
				return
			}
			if len(bs) == 0 {
				continue
			}
			c.logger.Debug("heard", zap.ByteString("msg", bs))

			var msg interface{}
			if err = json.Unmarshal(bs, &msg); err != nil {
				c.logger.Warn("bad input", zap.Error(err), zap.ByteString("msg", bs))
				continue
			}

			select {
			case <-ctx.Done():
				return
			case c.in <- msg:
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-c.out:
				for _, evt := range r.Emitted {
					// Routing is internal.
					evt = evt.Copy()
					delete(evt, "to")
					if err := c.write(evt); err != nil {
						c.logger.Error("write", zap.Error(err))
						return
					}
				}
				if c.Updates && 0 < len(r.Changed) {
					if err := c.write(map[string]interface{}{"changed": r.Changed}); err != nil {
						c.logger.Error("write", zap.Error(err))
						return
					}
				}
				if err := c.Update(r); err != nil {
					c.logger.Error("update", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

func (c *WebSocketCouplings) write(x interface{}) error {
	js, err := json.Marshal(x)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, js)
}

// IO just returns the channels that Start() initialized.
func (c *WebSocketCouplings) IO(ctx context.Context) (chan interface{}, chan *sio.Result, chan bool, error) {
	return c.in, c.out, c.done, nil
}

func (c *WebSocketCouplings) Read(ctx context.Context) (map[string]*crew.Machine, error) {
	return c.JSONStore.Read(ctx)
}

// Stop terminates the WebSocket connection and writes the state.
func (c *WebSocketCouplings) Stop(ctx context.Context) error {
	c.logger.Info("disconnecting")
	c.wmu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wmu.Unlock()
	c.conn.Close()
	return c.JSONStore.WriteState(ctx)
}
