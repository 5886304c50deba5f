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

// Package uimachine provides declarative state machines for widgets.
//
// A machine is described by a core.Spec (usually written in YAML) and
// bound to Go functions by a core.Implementation.  A service.Service
// runs it.  See packages core and service, and machines/toast for a
// complete example.
package uimachine

import (
	"context"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/service"
)

// CreateMachine compiles the spec with the given implementation and
// returns a Service that's ready to Start.
//
// A spec that's already compiled isn't changed.  A copy is compiled
// instead, with the given implementation taking precedence over the
// one the spec was compiled with, so the same definition can back
// machines with different implementations.
//
// Configuration problems are reported as a *core.ConfigurationError.
func CreateMachine(ctx context.Context, spec *core.Spec, impl *core.Implementation, opts ...service.Option) (*service.Service, error) {
	if spec.Compiled() {
		bound := impl.Copy().Merge(spec.Implementation())
		spec = spec.Copy("")
		// Scripts were compiled into the previous implementation.
		spec.Scripts = nil
		impl = bound
	}
	if err := spec.Compile(ctx, impl, nil, false); err != nil {
		return nil, err
	}
	return service.New(spec, opts...)
}

// CreateMachineFromSource parses a YAML or JSON definition and then
// calls CreateMachine.
func CreateMachineFromSource(ctx context.Context, src []byte, impl *core.Implementation, opts ...service.Option) (*service.Service, error) {
	spec, err := core.ParseSpec(src)
	if err != nil {
		return nil, err
	}
	return CreateMachine(ctx, spec, impl, opts...)
}
