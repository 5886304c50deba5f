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

package crew

import (
	"context"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/service"
)

// Machine is a member of a crew: an id, where its spec came from, and
// the running Service.
type Machine struct {
	Id      string       `json:"id,omitempty"`
	Specter core.Specter `json:"-" yaml:"-"`

	// SpecSource records where the spec came from, so that a
	// stored machine can be recreated.
	SpecSource *SpecSource `json:"spec,omitempty"`

	// State is filled in by Copy.
	State *core.State `json:"state,omitempty"`

	Service *service.Service `json:"-" yaml:"-"`
}

// Copy returns a new Machine with the same id, same spec, and the
// machine's current state.
func (m *Machine) Copy() *Machine {
	acc := &Machine{
		Id:         m.Id,
		Specter:    m.Specter,
		SpecSource: m.SpecSource,
		State:      m.State.Copy(),
	}
	if m.Service != nil {
		acc.State = m.Service.GetState()
	}
	return acc
}

// SpecSource aspires to hold the origin of a specification.
//
// Currently a source for a Spec can either be a name, a URL, or
// given explicitly as a string in YAML or JSON.
//
// Just how a SpecSource is used is up to the application.
type SpecSource struct {
	// Name is an optional string that could be used by a resolver
	// to obtain some spec.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// URL is an optional pointer to a spec.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source is an optional string representing a spec.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Inline is an optional actual spec right here.
	Inline *core.Spec `json:"inline,omitempty" yaml:",omitempty"`
}

// NewSpecSource creates a SpecSource with the given name.
func NewSpecSource(name string) *SpecSource {
	return &SpecSource{
		Name: name,
	}
}

// Copy makes a shallow copy of the given SpecSource.
func (s *SpecSource) Copy() *SpecSource {
	if s == nil {
		return nil
	}
	return &SpecSource{
		Name:   s.Name,
		URL:    s.URL,
		Source: s.Source,
		Inline: s.Inline,
	}
}

// SpecProvider can FindSpec given a SpecSource.  The returned Spec
// should be compiled.
type SpecProvider interface {
	FindSpec(ctx context.Context, s *SpecSource) (*core.Spec, error)
}
