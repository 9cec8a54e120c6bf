// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"errors"
	"fmt"
	"io"
)

const (
	ErrorOk ErrorCode = iota
	// These match the errors in protowire.
	ErrorTruncated
	ErrorFieldNumber
	ErrorOverflow
	ErrorReserved
	ErrorEndGroup
	ErrorRecursionDepth

	ErrorUTF8
	ErrorNegativeSize
	ErrorSizeLimit
)

// Errors that a [ParseError] may unwrap to. Callers should match on these
// with [errors.Is] rather than on message text.
var (
	ErrTruncated      = io.ErrUnexpectedEOF
	ErrFieldNumber    = errors.New("invalid field number")
	ErrOverflow       = errors.New("variable length integer overflow")
	ErrReserved       = errors.New("cannot parse reserved wire type")
	ErrEndGroup       = errors.New("mismatching end group marker")
	ErrRecursionDepth = errors.New("recursion depth exceeded")
	ErrUTF8           = errors.New("invalid UTF-8 in string")
	ErrNegativeSize   = errors.New("negative length prefix")
	ErrSizeLimit      = errors.New("size limit exceeded")
)

var errs = [...]error{
	ErrorOk:             nil,
	ErrorTruncated:      ErrTruncated,
	ErrorFieldNumber:    ErrFieldNumber,
	ErrorOverflow:       ErrOverflow,
	ErrorReserved:       ErrReserved,
	ErrorEndGroup:       ErrEndGroup,
	ErrorRecursionDepth: ErrRecursionDepth,
	ErrorUTF8:           ErrUTF8,
	ErrorNegativeSize:   ErrNegativeSize,
	ErrorSizeLimit:      ErrSizeLimit,
}

// ErrorCode is one of the possible types of errors in [ParseError].
type ErrorCode int

// Err returns the sentinel error for this code.
func (c ErrorCode) Err() error {
	if c < 0 || int(c) >= len(errs) {
		return fmt.Errorf("unknown error code %d", int(c))
	}
	return errs[c]
}

// String implements [fmt.Stringer].
func (c ErrorCode) String() string {
	if c == ErrorOk {
		return "ok"
	}
	return c.Err().Error()
}

// ParseError is an error returned when decoding malformed wire data.
type ParseError struct {
	code   ErrorCode
	offset int
}

// NewParseError returns a new error for the given code, which occurred at the
// given offset within the input.
func NewParseError(code ErrorCode, offset int) *ParseError {
	return &ParseError{code: code, offset: offset}
}

// Code returns the category of this error.
func (e *ParseError) Code() ErrorCode {
	return e.code
}

// Offset returns the offset at which the error occurred.
func (e *ParseError) Offset() int {
	return e.offset
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *ParseError) Unwrap() error {
	return e.code.Err()
}

// Error implements [error].
func (e *ParseError) Error() string {
	return fmt.Sprintf("wirepb: parse error at offset %d/%#x: %v", e.offset, e.offset, e.Unwrap())
}
