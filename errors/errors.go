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

package errors

import "strings"

// Error is a CodeError carrying zero or more parent causes.
type Error interface {
	error
	Code() CodeError
	AddParent(parent ...error)
	HasParent() bool
	HasCode(code CodeError) bool
	Unwrap() error
}

type ers struct {
	code   CodeError
	parent []error
}

func newError(code CodeError, parent ...error) Error {
	e := &ers{code: code}
	e.AddParent(parent...)
	return e
}

func (e *ers) Error() string {
	if len(e.parent) == 0 {
		return e.code.Message()
	}

	var s []string
	for _, p := range e.parent {
		if p != nil {
			s = append(s, p.Error())
		}
	}

	if len(s) == 0 {
		return e.code.Message()
	}

	return e.code.Message() + ": " + strings.Join(s, "; ")
}

func (e *ers) Code() CodeError { return e.code }

func (e *ers) AddParent(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
}

func (e *ers) HasParent() bool { return len(e.parent) > 0 }

func (e *ers) HasCode(code CodeError) bool {
	if e.code == code {
		return true
	}

	for _, p := range e.parent {
		if c, ok := p.(Error); ok && c.HasCode(code) {
			return true
		}
	}

	return false
}

// Unwrap exposes the first parent so errors.Is/errors.As from the standard
// library keep working on chains built through this package.
func (e *ers) Unwrap() error {
	if len(e.parent) == 0 {
		return nil
	}
	return e.parent[0]
}
