/* Copyright 2019 Comcast Cable Communications Management, LLC
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
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Comcast/uimachine/crew"
	"github.com/Comcast/uimachine/sio"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTCouplings is an sio.Couplings for an MQTT client.
//
// Messages published to the subscription topics are input.  An
// emitted event is published to its "topic" (or the default
// out-bound topic) with its "qos" (if any).
type MQTTCouplings struct {
	Client               mqtt.Client
	Quiesce              uint
	SubTopics            string
	InjectTopic          bool
	WrapWithTopic        bool
	DefaultOutboundTopic string
	UpdatesTopic         string

	InTimeout time.Duration

	*sio.JSONStore

	logger   *zap.Logger
	incoming chan interface{}
	outbound chan *sio.Result
	done     chan bool
}

func NewMQTTCouplings(args []string, logger *zap.Logger) (*MQTTCouplings, *flag.FlagSet) {
	var (
		// Follow mosquitto_sub command line args.

		fs = flag.NewFlagSet("mq", flag.ExitOnError)

		broker      = fs.String("h", "tcp://localhost", "Broker hostname")
		clientId    = fs.String("i", "", "Client id")
		port        = fs.Int("p", 1883, "Broker port")
		keepAlive   = fs.Int("k", 10, "Keep-alive in seconds")
		userName    = fs.String("u", "", "Username")
		password    = fs.String("P", "", "Password")
		willTopic   = fs.String("will-topic", "", "Optional will topic")
		willPayload = fs.String("will-payload", "", "Optional will message")
		willQoS     = fs.Int("will-qos", 0, "Optional will QoS")
		willRetain  = fs.Bool("will-retain", false, "Optional will retention")
		reconnect   = fs.Bool("reconnect", false, "Automatically attempt to reconnect")
		clean       = fs.Bool("c", true, "Clean session")
		quiesce     = fs.Int("quiesce", 100, "Disconnection quiescence (in milliseconds)")

		certFilename = fs.String("cert", "", "Optional cert filename")
		keyFilename  = fs.String("key", "", "Optional key filename")
		insecure     = fs.Bool("insecure", false, "Skip broker cert checking")
		caFilename   = fs.String("cafile", "", "Optional CA cert filename")
		caPath       = fs.String("capath", "", "Optional directory for -cafile")

		subTopics = fs.String("t", "", "subscription topic(s)")

		injectTopic          = fs.Bool("inject-topic", true, "put topic in map of incoming messages")
		wrapWithTopic        = fs.Bool("wrap-with-topic", false, "wrap non-maps in a map along with the topic")
		defaultOutboundTopic = fs.String("def-outbound-topic", "misc", "Default out-bound message topic")
		updatesTopic         = fs.String("updates-topic", "", "Optional topic for machine changes")
		inTimeout            = fs.Duration("in-timeout", time.Second, "timeout for in-bound queuing")
	)

	if args == nil {
		return nil, fs
	}

	fs.Parse(args)

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("io", "mq"))
	mqtt.ERROR = zap.NewStdLog(logger)

	opts := mqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("%s:%d", *broker, *port))
	opts.SetClientID(*clientId)
	opts.SetKeepAlive(time.Second * time.Duration(*keepAlive))

	opts.Username = *userName
	opts.Password = *password
	opts.AutoReconnect = *reconnect
	opts.CleanSession = *clean

	if *willTopic != "" {
		if *willPayload == "" {
			logger.Fatal("will topic without payload")
		}
		opts.WillEnabled = true
		opts.WillTopic = *willTopic
		opts.WillPayload = []byte(*willPayload)
		opts.WillRetained = *willRetain
		opts.WillQos = byte(*willQoS)
	}

	var rootCAs *x509.CertPool
	if *caFilename != "" {
		if rootCAs, _ = x509.SystemCertPool(); rootCAs == nil {
			rootCAs = x509.NewCertPool()
		}
		filename := filepath.Join(*caPath, *caFilename)
		certs, err := os.ReadFile(filename)
		if err != nil {
			logger.Fatal("couldn't read CA certs", zap.String("filename", filename), zap.Error(err))
		}
		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			logger.Warn("no certs appended, using system certs only")
		}
	}

	var certs []tls.Certificate
	if *keyFilename != "" {
		cert, err := tls.LoadX509KeyPair(*certFilename, *keyFilename)
		if err != nil {
			logger.Fatal("key pair", zap.Error(err))
		}
		certs = []tls.Certificate{cert}
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: *insecure,
	}

	if rootCAs != nil {
		tlsConf.RootCAs = rootCAs
	}

	if certs != nil {
		tlsConf.Certificates = certs
	}

	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("connection lost", zap.Error(err))
	}

	c := &MQTTCouplings{
		Quiesce:              uint(*quiesce),
		SubTopics:            *subTopics,
		InjectTopic:          *injectTopic,
		WrapWithTopic:        *wrapWithTopic,
		DefaultOutboundTopic: *defaultOutboundTopic,
		UpdatesTopic:         *updatesTopic,
		InTimeout:            *inTimeout,
		JSONStore:            sio.NewJSONStore(),

		logger:   logger,
		incoming: make(chan interface{}),
		outbound: make(chan *sio.Result),
		done:     make(chan bool),
	}

	c.Client = mqtt.NewClient(opts)

	return c, fs
}

// inHandler is a Paho publish handler, which is used to handle
// messages send to us from the MQTT broker due to our subscriptions.
func (c *MQTTCouplings) inHandler(ctx context.Context, client mqtt.Client, msg mqtt.Message) {
	var (
		x       interface{}
		payload = msg.Payload()
		topic   = msg.Topic()
	)
	c.logger.Debug("incoming", zap.String("topic", topic), zap.ByteString("payload", payload))

	if err := json.Unmarshal(payload, &x); err != nil {
		c.logger.Warn("couldn't JSON-parse payload", zap.ByteString("payload", payload))
		x = string(payload)
	}
	if m, is := x.(map[string]interface{}); is {
		if c.InjectTopic {
			m["topic"] = topic
		}
	} else if c.WrapWithTopic {
		x = map[string]interface{}{
			"topic":   topic,
			"payload": string(payload),
		}
	}

	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
	case c.incoming <- x:
	case <-to.C:
		c.logger.Warn("dropping incoming message due to stall", zap.String("topic", topic))
	}
}

// Start creates the MQTT session.
func (c *MQTTCouplings) Start(ctx context.Context) error {
	c.Open()

	c.logger.Info("connecting to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	handler := func(client mqtt.Client, msg mqtt.Message) {
		c.inHandler(ctx, client, msg)
	}

	for _, topic := range strings.Split(c.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		c.logger.Info("subscribing", zap.String("topic", topic), zap.Uint8("qos", qos))
		if t := c.Client.Subscribe(topic, qos, handler); t.Wait() && t.Error() != nil {
			return t.Error()
		}
	}

	go func() {
		if err := c.outLoop(ctx); err != nil {
			c.logger.Error("outLoop", zap.Error(err))
		}
	}()

	return nil
}

// IO returns the channels for incoming messages and out-bound
// Results.
func (c *MQTTCouplings) IO(ctx context.Context) (chan interface{}, chan *sio.Result, chan bool, error) {
	return c.incoming, c.outbound, c.done, nil
}

func (c *MQTTCouplings) publish(topic string, qos byte, x interface{}) error {
	js, err := json.Marshal(x)
	if err != nil {
		return err
	}
	token := c.Client.Publish(topic, qos, false, js)
	token.Wait()
	return token.Error()
}

// outLoop forwards messages outbound from the Crew to the MQTT
// broker.
func (c *MQTTCouplings) outLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-c.outbound:
			for _, evt := range r.Emitted {
				topic, qos := parseTopic(c.DefaultOutboundTopic)
				if s, is := evt["topic"].(string); is {
					topic = s
				}
				if n, have := evt["qos"]; have {
					if f, is := n.(float64); is {
						qos = byte(f)
					} else {
						c.logger.Warn("ignoring qos", zap.Any("qos", n))
					}
				}
				if err := c.publish(topic, qos, evt); err != nil {
					return err
				}
			}
			if c.UpdatesTopic != "" && 0 < len(r.Changed) {
				topic, qos := parseTopic(c.UpdatesTopic)
				if err := c.publish(topic, qos, r.Changed); err != nil {
					return err
				}
			}
			if err := c.Update(r); err != nil {
				return err
			}
		}
	}
}

func (c *MQTTCouplings) Read(ctx context.Context) (map[string]*crew.Machine, error) {
	return c.JSONStore.Read(ctx)
}

// Stop terminates the MQTT session.
func (c *MQTTCouplings) Stop(ctx context.Context) error {
	c.logger.Info("disconnecting")
	c.Client.Disconnect(c.Quiesce)
	close(c.done)
	return c.JSONStore.WriteState(ctx)
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ":"); 0 <= i {
		if n, err := strconv.ParseUint(s[i+1:], 10, 8); err == nil && n <= 2 {
			return s[:i], byte(n)
		}
	}
	return s, 0
}
