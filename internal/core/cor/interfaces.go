// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor provides the chain-of-responsibility building blocks the
// processing workflows are assembled from. A workflow is a Chain of
// Commands sharing one Context; the chain pipes each command's primary
// output into the next command's primary input.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CtxIn is the default key for a command's primary input. The chain
	// populates it with the previous command's output.
	CtxIn = "__IN__"
	// CtxOut is the default key where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the shared state object passed through a chain: a property bag
// for data, collected errors, temp-file bookkeeping, and the Go context that
// carries cancellation and trace information.
type Context interface {
	SetContext(context context.Context)
	GetContext() context.Context

	// Add stores a key-value pair and returns the Context for chaining.
	Add(key string, value interface{}) Context
	Get(key string) interface{}
	Remove(key string)

	// AddError records a command failure keyed by the command name.
	AddError(key string, err error)
	GetErrors() map[string]error
	HasErrors() bool

	// AddTempFile tracks a file for removal when the context is closed.
	AddTempFile(file string)
	GetTempFiles() []string

	// Close removes all tracked temp files. Defer it at workflow start.
	Close()
}

// Executable is anything with a core execution step.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic, thread-safe unit of work within a chain.
type Command interface {
	Executable

	GetName() string
	GetInputParam() string
	GetOutputParam() string

	// IsExecutable is the precondition check run before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a sequence of commands. A Chain is itself a Command, so chains
// nest.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps executing after a
	// command records an error. Default is to stop.
	ContinueOnFailure(bool) Chain

	AddCommand(command Command) Chain
}
