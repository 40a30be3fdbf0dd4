/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package errtyp

import "fmt"

// Error is a CodeError bound to a message and an optional parent chain.
// It implements the standard error interface and supports Is/Unwrap so
// callers can test for a given CodeError with errors.Is.
type Error struct {
	code   CodeError
	msg    string
	parent []error
}

// New builds an Error for the given code and message, chaining parents.
func New(code CodeError, msg string, parent ...error) *Error {
	return &Error{code: code, msg: msg, parent: parent}
}

// Newf builds an Error for the given code with a formatted message.
func Newf(code CodeError, format string, args ...interface{}) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	if len(e.parent) == 0 {
		return e.msg
	}

	return fmt.Sprintf("%s: %s", e.msg, e.parent[0].Error())
}

// Code returns the CodeError this error was created with.
func (e *Error) Code() CodeError {
	if e == nil {
		return UnknownError
	}

	return e.code
}

// Unwrap exposes the first chained parent, if any, to errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil || len(e.parent) == 0 {
		return nil
	}

	return e.parent[0]
}

// Is reports whether target is an *Error carrying the same CodeError.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.code == other.code
}

// HasCode reports whether err is (or wraps) an Error with the given code.
func HasCode(err error, code CodeError) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.code == code {
				return true
			}

			err = e.Unwrap()
			continue
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}

		err = u.Unwrap()
	}

	return false
}
