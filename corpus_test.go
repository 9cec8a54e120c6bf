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

package wirepb_test

import (
	"flag"
	"testing"

	"buf.build/go/wirepb"
	"buf.build/go/wirepb/internal/testdata"
)

var verbose = flag.Bool("wirepb.verbose", false, "if set, log both parses of each corpus specimen")

func TestCorpus(t *testing.T) {
	t.Parallel()
	testdata.RunAll(t, func(t *testing.T, test *testdata.TestCase) {
		test.Run(t, *verbose)
	})
}

func BenchmarkCorpus(b *testing.B) {
	testdata.RunAll(b, func(b *testing.B, test *testdata.TestCase) {
		opts := test.ParseOptions()
		for _, specimen := range test.Specimens {
			b.Run("", func(b *testing.B) {
				b.SetBytes(int64(len(specimen)))
				b.ReportAllocs()
				for range b.N {
					_, _ = wirepb.Parse(test.Type, specimen, opts...)
				}
			})
		}
	})
}
