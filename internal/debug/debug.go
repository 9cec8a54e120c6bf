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

//go:build debug

// Package debug includes debugging helpers.
//
// Building with -tags debug turns on assertions and trace logging. Logs go to
// stderr unless a test has claimed the goroutine with [WithTesting].
package debug

import (
	"flag"
	"fmt"
	"os"
	"path"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/timandy/routine"
)

// Enabled is true if the library is being built with the debug tag.
const Enabled = true

var (
	filter   *regexp.Regexp
	toStderr = flag.Bool("wirepb.stderr", false, "write debug logs to stderr even inside tests")
	sinks    = routine.NewThreadLocal[testing.TB]()
)

func init() {
	flag.Func("wirepb.filter", "only print debug logs matching this regexp", func(s string) (err error) {
		filter, err = regexp.Compile(s)
		return err
	})
}

// WithTesting sends debug logs from the calling goroutine to t, until the
// returned function is called.
//
//	defer debug.WithTesting(t)()
func WithTesting(t testing.TB) func() {
	prev := sinks.Get()
	sinks.Set(t)
	return func() { sinks.Set(prev) }
}

// Log records a trace line of the form
//
//	coded/input.go:156 [g0012] fail: truncated at 3
func Log(operation, format string, args ...any) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
	}
	if i := strings.Index(file, "/wirepb/"); i >= 0 {
		file = file[i+len("/wirepb/"):]
	} else {
		file = path.Base(file)
	}

	msg := fmt.Sprintf("%s:%d [g%04d] %s: %s",
		file, line, routine.Goid(), operation, fmt.Sprintf(format, args...))
	if filter != nil && !filter.MatchString(msg) {
		return
	}

	if t := sinks.Get(); t != nil && !*toStderr {
		t.Helper()
		t.Log(msg)
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}

// Assert panics with a stack trace if cond is false.
func Assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Errorf("wirepb: internal assertion failed: %s\n%s",
		fmt.Sprintf(format, args...), Stack(2)))
}
