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

package errors_test

import (
	stderrs "errors"
	"testing"

	liberr "github.com/un9021/uniset2/errors"
)

func TestCodeErrorRootHasNoParent(t *testing.T) {
	e := liberr.ErrSMCall.Error()
	if e.HasParent() {
		t.Fatalf("fresh error should have no parent")
	}
	if e.Code() != liberr.ErrSMCall {
		t.Fatalf("code mismatch: got %v", e.Code())
	}
}

func TestAddParentAccumulates(t *testing.T) {
	base := stderrs.New("dial tcp: refused")
	e := liberr.ErrTransport.ErrorParent(base)
	if !e.HasParent() {
		t.Fatalf("expected parent to be recorded")
	}
	if !stderrs.Is(e, base) {
		t.Fatalf("expected errors.Is to find the wrapped parent")
	}
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := liberr.ErrSMCall.Error()
	outer := liberr.ErrFatalInvariant.ErrorParent(inner)
	if !outer.HasCode(liberr.ErrSMCall) {
		t.Fatalf("expected HasCode to find nested code")
	}
	if outer.HasCode(liberr.ErrPeerProtocol) {
		t.Fatalf("did not expect unrelated code to match")
	}
}
