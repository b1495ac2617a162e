/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package errors gives every gateway component a single error shape: a
// numeric CodeError plus an optional chain of parent causes, modeled on
// the liberr package of github.com/nabbar/golib.
package errors

import "strconv"

// CodeError is the taxonomy of the error handling design: ConfigError,
// SMUnreadyError, SMCallError, TransportError, QueueOverflow,
// PeerProtocolError, FatalInvariantViolation.
type CodeError uint16

const (
	UnknownError CodeError = 0

	ErrConfig         CodeError = 100
	ErrSMUnready      CodeError = 101
	ErrSMCall         CodeError = 102
	ErrTransport      CodeError = 103
	ErrQueueOverflow  CodeError = 104
	ErrPeerProtocol   CodeError = 105
	ErrFatalInvariant CodeError = 106
)

var codeMessage = map[CodeError]string{
	UnknownError:      "unknown error",
	ErrConfig:         "configuration error",
	ErrSMUnready:      "shared memory not ready",
	ErrSMCall:         "shared memory call failed",
	ErrTransport:      "transport error",
	ErrQueueOverflow:  "egress queue overflow",
	ErrPeerProtocol:   "peer protocol error",
	ErrFatalInvariant: "fatal invariant violation",
}

func (c CodeError) Uint16() uint16 { return uint16(c) }

func (c CodeError) String() string { return strconv.Itoa(int(c)) }

// Message returns the fixed, human-readable description of the code.
func (c CodeError) Message() string {
	if m, ok := codeMessage[c]; ok {
		return m
	}
	return "unknown error"
}

// Error builds a new Error rooted at this code with the given parents.
func (c CodeError) Error(parent ...error) Error {
	return newError(c, parent...)
}

// ErrorParent is kept distinct from Error for call-site readability when
// every argument is a parent cause rather than free-form context.
func (c CodeError) ErrorParent(parent ...error) Error {
	return newError(c, parent...)
}
