package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// Never is a delay that doesn't fire.  Interpreters don't arm a timer
// for it.
const Never = time.Duration(math.MaxInt64)

// DelayFunc computes a delay from the machine's context.
type DelayFunc func(bs Bindings) (time.Duration, error)

// CronPrefix marks a declared delay as a cron expression.
const CronPrefix = "cron:"

// Now is the clock used by cron delays.  Tests can replace it.
var Now = time.Now

// literalDelay parses an "after" key that is just a number of
// milliseconds.  Numbers too large for a Duration are Never.
func literalDelay(key string) (time.Duration, bool) {
	n, err := strconv.ParseInt(key, 10, 64)
	if ne, is := err.(*strconv.NumError); is && ne.Err == strconv.ErrRange && 0 < n {
		return Never, true
	}
	if err != nil || n < 0 {
		return 0, false
	}
	return millis(n), true
}

// ParseDelay turns a declared delay into a DelayFunc.
//
// Accepted forms: a number of milliseconds ("1500"), a Go duration
// ("250ms", "2s"), "never", or a cron expression prefixed by "cron:",
// which gives the time until the expression's next match.
func ParseDelay(s string) (DelayFunc, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty delay")
	}
	if s == "never" {
		return func(Bindings) (time.Duration, error) {
			return Never, nil
		}, nil
	}
	if strings.HasPrefix(s, CronPrefix) {
		expr, err := cronexpr.Parse(strings.TrimSpace(s[len(CronPrefix):]))
		if err != nil {
			return nil, err
		}
		return func(Bindings) (time.Duration, error) {
			now := Now()
			next := expr.Next(now)
			if next.IsZero() {
				return Never, nil
			}
			return next.Sub(now), nil
		}, nil
	}
	if d, ok := literalDelay(s); ok {
		return func(Bindings) (time.Duration, error) {
			return d, nil
		}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	if d < 0 {
		return nil, errors.New("negative delay " + s)
	}
	return func(Bindings) (time.Duration, error) {
		return d, nil
	}, nil
}

// ResolveDelay computes the duration for an "after" key at the given
// context.  Keys that are plain numbers are milliseconds; anything
// else names a DelayFunc.
//
// Negative results are treated as zero.
func (spec *Spec) ResolveDelay(key string, bs Bindings) (time.Duration, error) {
	if d, ok := literalDelay(key); ok {
		return d, nil
	}
	if !spec.compiled {
		return 0, &SpecNotCompiled{Spec: spec}
	}
	f, have := spec.impl.Delays[key]
	if !have {
		return 0, errors.New("unknown delay " + key)
	}
	d, err := callDelay(f, bs)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		d = 0
	}
	return d, nil
}

func callDelay(f DelayFunc, bs Bindings) (d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("delay panic")
		}
	}()
	return f(bs)
}
