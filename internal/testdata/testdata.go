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

// Package testdata contains the conformance corpus: YAML test cases, each
// naming a message type and some encoded specimens of it, which are parsed
// both by this module and by protobuf-go and compared.
package testdata

import (
	"bytes"
	"embed"
	"encoding/hex"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
	"gopkg.in/yaml.v3"

	"buf.build/go/wirepb"
	"buf.build/go/wirepb/internal/debug"
	"buf.build/go/wirepb/internal/prototest"

	_ "google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/structpb"
)

//go:embed *.yaml
var testdata embed.FS

// Harness is a generalization of [testing.TB] that also includes the
// [testing.T.Run] method. It must be generic because the signature of this
// function varies across [testing.T] and [testing.B].
type Harness[T any] interface {
	testing.TB
	Run(string, func(T)) bool
}

// TestCase is a test case from the corpus.
type TestCase struct {
	Name string `yaml:"-"`

	// Schema is a FileDescriptorProto in text format. If empty, TypeName is
	// looked up among the types linked into the binary.
	Schema   string `yaml:"schema"`
	TypeName string `yaml:"type"`

	Type  protoreflect.MessageDescriptor `yaml:"-"`
	Types *protoregistry.Types           `yaml:"-"`

	// If set, run this test as a benchmark.
	Benchmark bool `yaml:"benchmark"`

	Options struct {
		AllowPartial   bool `yaml:"allow_partial"`
		DiscardUnknown bool `yaml:"discard_unknown"`
	} `yaml:"options"`

	// Three ways to encode the test: hex, textproto, and protoscope
	Hex        []string `yaml:"hex"`
	TextProto  []string `yaml:"textproto"`
	Protoscope []string `yaml:"protoscope"`

	Specimens [][]byte `yaml:"-"`
}

// RunAll runs all of the test cases against the given harness.
func RunAll[T Harness[T]](t T, f func(T, *TestCase)) {
	t.Helper()

	var failed atomic.Bool
	err := fs.WalkDir(testdata, ".", func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err, "loading test %q", path)

		if d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}

		t.Run(strings.TrimSuffix(path, ".yaml"), func(t T) {
			if t, ok := any(t).(*testing.T); ok {
				t.Parallel()
			}

			defer failed.CompareAndSwap(false, t.Failed())

			data, err := fs.ReadFile(testdata, path)
			require.NoError(t, err, "loading test %q", path)

			test := parseTestCase(t, path, data)
			if test != nil {
				f(t, test)
			}
		})

		return nil
	})
	require.NoError(t, err)
}

// ParseOptions returns the options to parse this test's specimens with.
func (test *TestCase) ParseOptions() []wirepb.ParseOption {
	return []wirepb.ParseOption{
		wirepb.WithExtensionsFromTypes(test.Types),
		wirepb.WithAllowPartial(test.Options.AllowPartial),
		wirepb.WithDiscardUnknown(test.Options.DiscardUnknown),
	}
}

// Run executes a single test case.
func (test *TestCase) Run(t *testing.T, verbose bool) {
	t.Helper()

	run := func(t *testing.T, specimen []byte) {
		t.Helper()
		defer debug.WithTesting(t)()

		// Parse using protobuf-go.
		m1 := dynamicpb.NewMessage(test.Type)
		err1 := proto.UnmarshalOptions{
			Resolver:       test.Types,
			AllowPartial:   test.Options.AllowPartial,
			DiscardUnknown: test.Options.DiscardUnknown,
		}.Unmarshal(specimen, m1)

		// Parse using wirepb.
		m2, err2 := wirepb.Parse(test.Type, specimen, test.ParseOptions()...)

		if verbose {
			t.Logf("theirs: %v, ours: %v", err1, err2)
		}

		if err1 != nil {
			require.Error(t, err2, "protobuf-go error: %v", err1)
			return
		}
		require.NoError(t, err2)

		// Compare by re-encoding ours and handing it to protobuf-go.
		data := m2.Marshal()
		require.Len(t, data, m2.Size())
		m3 := dynamicpb.NewMessage(test.Type)
		err := proto.UnmarshalOptions{Resolver: test.Types, AllowPartial: true}.Unmarshal(data, m3)
		require.NoError(t, err)

		// protobuf-go keeps undeclared closed-enum values in repeated fields;
		// wirepb moves them to unknown fields.
		prototest.SplitClosedEnums(m1.ProtoReflect())
		prototest.SplitClosedEnums(m3.ProtoReflect())
		prototest.Equal(t, m1, m3)

		if verbose {
			t.Logf("theirs: %s", prototext.Format(m1))
			t.Logf("ours: %s", prototext.Format(m3))
		}
	}

	if len(test.Specimens) == 1 {
		run(t, test.Specimens[0])
		return
	}

	for _, specimen := range test.Specimens {
		t.Run("", func(t *testing.T) {
			t.Parallel()
			run(t, specimen)
		})
	}
}

// parseTestCase parses a single test case from the given data.
//
// This will call t.FailNow() if testing fails.
func parseTestCase(t testing.TB, path string, file []byte) *TestCase {
	t.Helper()
	defer debug.WithTesting(t)()

	require.True(t, bytes.HasSuffix(file, []byte("\n")), "missing trailing newline in %q", path)

	test := new(TestCase)
	dec := yaml.NewDecoder(bytes.NewReader(file))
	dec.KnownFields(true)
	err := dec.Decode(&test)
	require.NoError(t, err, "loading test %q", path)

	_, isBench := t.(*testing.B)
	if isBench && !test.Benchmark {
		t.SkipNow()
	}

	test.Name = strings.TrimSuffix(path, ".yaml")
	if test.Schema != "" {
		schema := prototest.Compile(t, test.Schema)
		test.Types = schema.Types
	} else {
		test.Types = protoregistry.GlobalTypes
	}
	ty, err := test.Types.FindMessageByName(protoreflect.FullName(test.TypeName))
	require.NoError(t, err, "loading type %q", test.TypeName)
	test.Type = ty.Descriptor()

	for _, raw := range test.Hex {
		r := strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "")
		b, err := hex.DecodeString(r.Replace(raw))
		require.NoError(t, err, "loading test %q", path)

		test.Specimens = append(test.Specimens, b)
	}

	for _, raw := range test.TextProto {
		m := dynamicpb.NewMessage(test.Type)
		err = prototext.UnmarshalOptions{Resolver: test.Types, AllowPartial: true}.Unmarshal([]byte(raw), m)
		require.NoError(t, err, "loading test %q", path)

		b, err := proto.MarshalOptions{AllowPartial: true}.Marshal(m)
		require.NoError(t, err, "loading test %q", path)

		test.Specimens = append(test.Specimens, b)
	}

	for _, raw := range test.Protoscope {
		s := protoscope.NewScanner(raw)
		b, err := s.Exec()
		require.NoError(t, err, "loading test %q", path)

		test.Specimens = append(test.Specimens, b)
	}

	return test
}
