// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package common

import (
	"fmt"
	"strings"

	"github.com/basecode-lang/basecode/pkg/source"
)

// Severity classifies a diagnostic message. Only Error and Fatal push a
// Result into the failed state; Info and Warning are purely informational.
type Severity uint8

const (
	// Info is a purely informational message, e.g. a compile-phase timing
	// report.
	Info Severity = iota
	// Warning flags something suspicious that does not block compilation.
	Warning
	// Error is a user-facing coded diagnostic that marks the session as
	// failed.
	Error
	// Fatal indicates an internal invariant violation (e.g. "element id not
	// found in registry"); the driver aborts immediately on these rather
	// than continuing to batch further diagnostics.
	Fatal
)

// String renders a severity for display.
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Message is a single coded diagnostic with an optional source location.
// Codes are stable `P###`/`C###`/`B###` identifiers; internal-invariant
// diagnostics use the literal code "INTERNAL".
type Message struct {
	Severity Severity
	Code     string
	Text     string
	// Location is nil for diagnostics that aren't tied to a specific span,
	// e.g. "unable to load shared library at startup".
	Location *source.Location
	File     string
}

// String renders a message the way a command-line compiler would print it.
func (m Message) String() string {
	var b strings.Builder

	b.WriteString(m.Severity.String())

	if m.Code != "" {
		fmt.Fprintf(&b, "[%s]", m.Code)
	}

	if m.Location != nil {
		if m.File != "" {
			fmt.Fprintf(&b, " %s:%s", m.File, m.Location.String())
		} else {
			fmt.Fprintf(&b, " %s", m.Location.String())
		}
	}

	b.WriteString(": ")
	b.WriteString(m.Text)

	return b.String()
}

// Result accumulates diagnostics across a compile session. Every fallible
// function in this module takes (or returns into) a *Result rather than a Go
// error, so that several related problems can be reported from a single
// pass: each pass completes fully and the user receives a batch of
// diagnostics rather than stopping at the first one.
type Result struct {
	messages []Message
	failed   bool
}

// NewResult constructs an empty, successful result.
func NewResult() *Result {
	return &Result{}
}

// Add appends a message to this result, marking it failed if the severity
// is Error or Fatal.
func (r *Result) Add(m Message) {
	r.messages = append(r.messages, m)

	if m.Severity == Error || m.Severity == Fatal {
		r.failed = true
	}
}

// AddError is shorthand for the common case of reporting a coded,
// source-located error.
func (r *Result) AddError(code string, loc *source.Location, file string, format string, args ...any) {
	r.Add(Message{
		Severity: Error,
		Code:     code,
		Text:     fmt.Sprintf(format, args...),
		Location: loc,
		File:     file,
	})
}

// AddFatal reports an internal-invariant violation.
func (r *Result) AddFatal(format string, args ...any) {
	r.Add(Message{
		Severity: Fatal,
		Code:     "INTERNAL",
		Text:     fmt.Sprintf(format, args...),
	})
}

// AddWarning reports a non-blocking diagnostic.
func (r *Result) AddWarning(code string, loc *source.Location, file string, format string, args ...any) {
	r.Add(Message{
		Severity: Warning,
		Code:     code,
		Text:     fmt.Sprintf(format, args...),
		Location: loc,
		File:     file,
	})
}

// AddInfo reports a purely informational message.
func (r *Result) AddInfo(format string, args ...any) {
	r.Add(Message{Severity: Info, Text: fmt.Sprintf(format, args...)})
}

// IsFailed returns true once at least one Error or Fatal message has been
// recorded.
func (r *Result) IsFailed() bool {
	return r.failed
}

// Messages returns every diagnostic recorded so far, in recording order.
func (r *Result) Messages() []Message {
	return r.messages
}

// Errors returns only the Error/Fatal-severity messages.
func (r *Result) Errors() []Message {
	var errs []Message

	for _, m := range r.messages {
		if m.Severity == Error || m.Severity == Fatal {
			errs = append(errs, m)
		}
	}

	return errs
}

// Merge folds another result's messages into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}

	r.messages = append(r.messages, other.messages...)
	r.failed = r.failed || other.failed
}
