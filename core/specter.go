/* Copyright 2018 Comcast Cable Communications Management, LLC
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
	"errors"
	"sync/atomic"
)

// Specter enables other things to manifest themselves as Specs.
//
// A Spec is itself a Specter.  An UpdatableSpec is also a Specter,
// but it's not itself a Spec.
//
// Machines that are already running keep the Spec they started
// with.  Only new machines see an update.
type Specter interface {
	Spec() *Spec
}

// Spec makes any Spec a Specter.
func (spec *Spec) Spec() *Spec {
	return spec
}

// UpdatableSpec is a Specter with an underlying compiled Spec that
// can be replaced at any time (say when a definition file changes).
type UpdatableSpec struct {
	spec atomic.Pointer[Spec]
}

// NewUpdatableSpec makes one with the given initial spec, which can
// be changed later via SetSpec.
func NewUpdatableSpec(spec *Spec) *UpdatableSpec {
	u := &UpdatableSpec{}
	u.spec.Store(spec)
	return u
}

// SetSpec atomically changes the underlying spec, which must be
// compiled.
func (u *UpdatableSpec) SetSpec(spec *Spec) error {
	if spec == nil {
		return errors.New("nil spec")
	}
	if !spec.Compiled() {
		return &SpecNotCompiled{Spec: spec}
	}
	u.spec.Store(spec)
	return nil
}

// Spec implements the Specter interface.
func (u *UpdatableSpec) Spec() *Spec {
	return u.spec.Load()
}
