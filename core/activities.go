/* Copyright 2024 Comcast Cable Communications Management, LLC
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

package core

import (
	"context"
	"fmt"
	"sync"
)

// Disposer tears down something that an activity started.
type Disposer interface {
	Dispose()
}

// DisposeFunc is a Disposer made from a function.
type DisposeFunc func()

func (f DisposeFunc) Dispose() {
	if f != nil {
		f()
	}
}

// ActivityFunc starts a long-lived side effect for the lifetime of a
// node (or of the whole machine for root-level activities).
//
// The returned Disposer (if any) is called exactly once when the node
// is exited or the machine is stopped.  A nil Disposer is fine.
//
// An activity can keep the Meta and call Send later from any
// goroutine.
type ActivityFunc func(ctx context.Context, bs Bindings, evt Event, meta *Meta) (Disposer, error)

// Handle is a started activity.
type Handle struct {
	// Key is the activity's name.
	Key string

	// State is the node that started the activity.
	State string

	once     sync.Once
	disposer Disposer
}

// NewHandle wraps the given Disposer (which can be nil).
func NewHandle(key string, d Disposer) *Handle {
	return &Handle{
		Key:      key,
		disposer: d,
	}
}

// Dispose calls the activity's Disposer the first time and does
// nothing after that.
func (h *Handle) Dispose() {
	h.Close()
}

// Close is Dispose that turns a panic in the Disposer into an
// *ActivityError.  Only the first call can return an error.
func (h *Handle) Close() (err error) {
	h.once.Do(func() {
		if h.disposer == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				err = &ActivityError{
					Activity: h.Key,
					State:    h.State,
					Cleanup:  true,
					Err:      fmt.Errorf("panic: %v", r),
				}
			}
		}()
		h.disposer.Dispose()
	})
	return err
}

// StartActivity calls the ActivityFunc, turning a panic into an
// error.
func StartActivity(ctx context.Context, key string, f ActivityFunc, bs Bindings, evt Event, meta *Meta) (h *Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = &ActivityError{
				Activity: key,
				State:    meta.State(),
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()
	d, err := f(ctx, bs, evt, meta)
	if err != nil {
		return nil, &ActivityError{
			Activity: key,
			State:    meta.State(),
			Err:      err,
		}
	}
	h = NewHandle(key, d)
	h.State = meta.State()
	return h, nil
}

// Once makes a Disposer that calls d at most once.
func Once(d Disposer) Disposer {
	return NewHandle("", d)
}
