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

package wirepb

import (
	"math"

	"google.golang.org/protobuf/reflect/protoregistry"

	"buf.build/go/wirepb/coded"
)

// The below is not an interface because of https://github.com/golang/go/issues/74356,
// and because the With*() functions are called on every parse.

// ParseOption is a configuration setting for [Parse] and related functions.
type ParseOption struct{ apply func(*options) }

type options struct {
	coded            coded.Options
	extensions       protoregistry.ExtensionTypeResolver
	allowPartial     bool
	discardUnknown   bool
	allowInvalidUTF8 bool
	eagerMessageSets bool
}

func newOptions(opts []ParseOption) options {
	var o options
	for _, opt := range opts {
		if opt.apply != nil {
			opt.apply(&o)
		}
	}
	return o
}

// WithMaxDepth sets the maximum nesting depth of messages and groups. The
// default is [coded.DefaultMaxDepth].
//
// Setting a large value enables potential DoS vectors.
func WithMaxDepth(depth int) ParseOption {
	return ParseOption{func(o *options) { o.coded.MaxDepth = min(depth, math.MaxInt32) }}
}

// WithSizeLimit sets the maximum number of bytes read from an [io.Reader].
// The default is [coded.DefaultSizeLimit]. Parsing in-memory data is not
// limited.
func WithSizeLimit(limit int) ParseOption {
	return ParseOption{func(o *options) { o.coded.SizeLimit = limit }}
}

// WithAllowAlias sets whether parsed bytes fields may share memory with
// the input []byte, rather than copying it. The caller must not modify the
// input afterwards.
//
// Analogous to [protoimpl.UnmarshalAliasBuffer].
func WithAllowAlias(allow bool) ParseOption {
	return ParseOption{func(o *options) { o.coded.Alias = allow }}
}

// WithExtensions provides a resolver for extensions. Extensions that it does
// not know about are parsed as unknown fields.
//
// By default, no extensions are recognized.
func WithExtensions(resolver protoregistry.ExtensionTypeResolver) ParseOption {
	return ParseOption{func(o *options) { o.extensions = resolver }}
}

// WithExtensionsFromTypes uses a type registry to resolve extensions.
func WithExtensionsFromTypes(types *protoregistry.Types) ParseOption {
	return WithExtensions(types)
}

// WithAllowPartial sets whether messages with missing required fields
// parse successfully. Analogous to [proto.UnmarshalOptions].
func WithAllowPartial(allow bool) ParseOption {
	return ParseOption{func(o *options) { o.allowPartial = allow }}
}

// WithDiscardUnknown sets whether unknown fields should be discarded while
// parsing. Analogous to [proto.UnmarshalOptions].
//
// Setting this option will break round-tripping.
func WithDiscardUnknown(discard bool) ParseOption {
	return ParseOption{func(o *options) { o.discardUnknown = discard }}
}

// WithAllowInvalidUTF8 sets whether UTF-8 is validated when parsing string
// fields originating from non-proto2 files.
func WithAllowInvalidUTF8(allow bool) ParseOption {
	return ParseOption{func(o *options) { o.allowInvalidUTF8 = allow }}
}

// WithEagerMessageSets sets whether MessageSet extensions are decoded while
// parsing. By default, they are kept encoded until first accessed.
func WithEagerMessageSets(eager bool) ParseOption {
	return ParseOption{func(o *options) { o.eagerMessageSets = eager }}
}
