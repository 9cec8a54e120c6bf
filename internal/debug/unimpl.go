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

package debug

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Unsupported returns an error reporting that the calling method is not
// supported. The error matches [errors.ErrUnsupported].
func Unsupported() error {
	pcs := make([]uintptr, 4)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(1, pcs)])
	frames.Next() // Unsupported itself.
	caller, _ := frames.Next()
	return unsupported(caller.Function)
}

type unsupported string

func (e unsupported) Error() string {
	if e == "" {
		return "wirepb: unsupported operation"
	}
	// buf.build/go/wirepb.(*Builder).GetFieldBuilder -> Builder.GetFieldBuilder
	name := string(e)
	name = name[strings.LastIndexByte(name, '/')+1:]
	name = name[strings.IndexByte(name, '.')+1:]
	name = strings.NewReplacer("(*", "", ")", "").Replace(name)
	return fmt.Sprintf("wirepb: %s is not supported", name)
}

func (e unsupported) Unwrap() error { return errors.ErrUnsupported }
