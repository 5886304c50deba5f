/* Copyright 2018-2024 Comcast Cable Communications Management, LLC
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

// Package core provides the core gear for declarative widget state
// machines.  A Spec is an immutable description of a machine: an
// initial node, a set of Nodes, transitions keyed by event type,
// delayed ("after") transitions, activities, watches, and computed
// fields.
//
// Everything a Spec references by name (guards, actions, activities,
// delays, computed fields, equality functions) is supplied by an
// Implementation.  Spec.Compile checks every reference against that
// Implementation and reports all problems at once in a
// ConfigurationError.  A Spec can also carry Scripts, which are
// compiled via an Interpreter (see package interpreters/goja) into
// entries of the Implementation.
//
// The machine's context is a Bindings (a map[string]interface{}).
// Only actions and activity callbacks change it, and only while the
// owning interpreter is dispatching.  Consumers see State snapshots,
// which are deep copies.
//
// This package does not run anything by itself.  It resolves
// transitions (Spec.Resolve), runs action lists (RunActions), and
// evaluates guards (EvalGuard).  Package service orchestrates those
// pieces with timers and activities into a running machine.
//
// To use this package, make a Spec (or ParseSpec some YAML). Then
// Compile() it with an Implementation.  You might also want to
// tools.Analyze() it.
package core
