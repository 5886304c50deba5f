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

// Package main is a single-crew process that reads messages from a
// coupling (stdin, a WebSocket, or an MQTT broker) and writes
// results back to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/crew"
	"github.com/Comcast/uimachine/interpreters"
	"github.com/Comcast/uimachine/machines/toast"
	"github.com/Comcast/uimachine/sio"
	"github.com/Comcast/uimachine/storage"
	"github.com/Comcast/uimachine/storage/bolt"
	"github.com/Comcast/uimachine/util"

	"go.uber.org/zap"
)

func main() {

	var (
		coupling            = flag.String("io", "std", `IO protocol: "std", "mq", or "ws"`)
		confFilename        = flag.String("conf", "", "Optional crew configuration (YAML)")
		crewId              = flag.String("id", "sio", "Crew id (unless given by -conf)")
		specDir             = flag.String("spec-dir", ".", "Directory for named specs")
		stateInputFilename  = flag.String("state-input-filename", "", "Optional name for input JSON state file")
		stateOutputFilename = flag.String("state-output-filename", "state.json", "Optional name for output JSON state file")
		dbFilename          = flag.String("db", "", "Optional bolt database for machine state")

		specFile = flag.String("spec-file", "", "Optional spec filename")
		mid      = flag.String("mid", "m", "Machine id for -spec-file (if given)")

		logLevel = flag.String("log-level", "info", "Log level")
		logFile  = flag.String("log-file", "", "Optional (rotated) log file instead of stderr")

		wait      = flag.Duration("wait", time.Second, "Wait this long before shutting down couplings")
		haltOnEOF = flag.Bool("halt-on-eof", false, "Stop on input EOF")
		help      = flag.Bool("h", false, "Get usage")
	)

	flag.Parse()

	if *help {
		flag.PrintDefaults()

		{
			fmt.Fprintf(os.Stderr, "\n-io std (default):\n\n")
			_, fs := NewStdCouplings(nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io mq:\n\n")
			_, fs := NewMQTTCouplings(nil, nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io ws:\n\n")
			_, fs := NewWebSocketCouplings(nil, nil)
			fs.PrintDefaults()
		}

		os.Exit(0)
	}

	logger := util.NewLogger(nil, util.ParseLevel(*logLevel))
	if *logFile != "" {
		lf := &util.LogFile{
			Filename: *logFile,
		}
		w := lf.Writer()
		defer w.Close()
		logger = util.NewLogger(w, util.ParseLevel(*logLevel))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := sio.NewCrewConf(*crewId)
	if *confFilename != "" {
		c, err := sio.ReadCrewConf(*confFilename)
		if err != nil {
			logger.Fatal("conf", zap.Error(err))
		}
		conf = c
		if conf.Id == "" {
			conf.Id = *crewId
		}
	}
	if conf.SpecDir == "" {
		conf.SpecDir = *specDir
	}
	if *haltOnEOF {
		conf.HaltOnInputEOF = true
	}

	var (
		cio   sio.Couplings
		store *sio.JSONStore
	)
	switch *coupling {
	case "std":
		c, _ := NewStdCouplings(flag.Args())
		c.Logger = logger
		store = &c.JSONStore
		cio = c
	case "mq", "mqtt":
		c, _ := NewMQTTCouplings(flag.Args(), logger)
		store = c.JSONStore
		cio = c
	case "ws":
		c, _ := NewWebSocketCouplings(flag.Args(), logger)
		store = &c.JSONStore
		cio = c
	default:
		logger.Fatal("unknown io", zap.String("io", *coupling))
	}

	if *stateInputFilename != "" {
		store.StateInputFilename = *stateInputFilename
	}
	if *stateOutputFilename != "" {
		store.StateOutputFilename = *stateOutputFilename
	}

	specs := sio.NewSpecs(conf.SpecDir, interpreters.Standard(logger))
	specs.Register("turnstile", core.TurnstileSpec)
	specs.Register("toast", func(ctx context.Context) (*core.Spec, error) {
		return toast.Spec(ctx, toast.Options{})
	})

	opts := []sio.CrewOption{
		sio.WithLogger(logger),
		sio.WithSpecs(specs),
	}

	var db *bolt.Storage
	if *dbFilename != "" {
		var err error
		if db, err = bolt.NewStorage(*dbFilename, logger); err != nil {
			logger.Fatal("db", zap.Error(err))
		}
		if err = db.Open(ctx); err != nil {
			logger.Fatal("db", zap.Error(err))
		}
		defer db.Close(context.Background())
		opts = append(opts, sio.WithStorage(db))
	}

	if err := cio.Start(ctx); err != nil {
		logger.Fatal("couplings", zap.Error(err))
	}

	c, err := sio.NewCrew(ctx, conf, cio, opts...)
	if err != nil {
		logger.Fatal("crew", zap.Error(err))
	}

	ms, err := cio.Read(ctx)
	if err != nil {
		logger.Fatal("read", zap.Error(err))
	}
	if ms == nil {
		ms = make(map[string]*crew.Machine)
	}
	if db != nil {
		mss, err := db.GetCrew(ctx, conf.Id)
		if err != nil {
			logger.Fatal("db", zap.Error(err))
		}
		for mid, m := range storage.AsMachines(mss) {
			ms[mid] = m
		}
	}

	if *specFile != "" {
		bs, err := os.ReadFile(*specFile)
		if err != nil {
			logger.Fatal("spec", zap.Error(err))
		}
		if _, have := ms[*mid]; !have {
			ms[*mid] = &crew.Machine{
				Id: *mid,
				SpecSource: &crew.SpecSource{
					Source: string(bs),
				},
			}
		}
	}

	if err = c.Restore(ctx, ms); err != nil {
		logger.Fatal("restore", zap.Error(err))
	}

	go func() {
		if std, is := cio.(*sio.Stdio); is {
			<-std.InputEOF
			logger.Info("input EOF", zap.Duration("wait", *wait))
			time.Sleep(*wait)
			cancel()
		}
	}()

	if err := c.Loop(ctx); err != nil {
		logger.Error("loop", zap.Error(err))
	}

	c.Stop(context.Background())

	if err = cio.Stop(context.Background()); err != nil {
		logger.Error("io.Stop", zap.Error(err))
	}
}
