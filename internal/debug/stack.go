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
	"fmt"
	"runtime"
	"strings"
)

// Stack formats the calling goroutine's stack, one frame per line, omitting
// the innermost skip frames and anything inside the runtime.
//
// Functions in this module are printed without the module path.
func Stack(skip int) string {
	pcs := make([]uintptr, 64)
	pcs = pcs[:runtime.Callers(skip+1, pcs)]

	var out strings.Builder
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			name := strings.TrimPrefix(f.Function, "buf.build/go/wirepb/")
			fmt.Fprintf(&out, "  %s\n    %s:%d\n", name, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return out.String()
}
