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

// wiredump prints Protobuf wire data in protoscope syntax, after checking
// that it is well-formed.
//
//	wiredump [flags] [file]
//
// With no file, or with "-", it reads stdin. Input that starts with the zstd
// frame magic is decompressed first.
package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/protocolbuffers/protoscope"
	"github.com/spf13/pflag"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/unknown"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type config struct {
	delimited     bool
	explicitTypes bool
	messages      bool
	maxDepth      int
	quiet         bool
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "wiredump:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var cfg config
	flags := pflag.NewFlagSet("wiredump", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.BoolVarP(&cfg.delimited, "delimited", "d", false, "input is a stream of size-prefixed messages")
	flags.BoolVar(&cfg.explicitTypes, "explicit-types", false, "print the wire type of every field")
	flags.BoolVar(&cfg.messages, "messages", false, "try to print every length-delimited field as a message")
	flags.IntVar(&cfg.maxDepth, "max-depth", coded.DefaultMaxDepth, "maximum group nesting to accept")
	flags.BoolVarP(&cfg.quiet, "quiet", "q", false, "only validate; print nothing on success")
	if err := flags.Parse(args); err != nil {
		return err
	}

	in := stdin
	if path := flags.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	r, err := decompress(bufio.NewReader(in))
	if err != nil {
		return err
	}
	defer r.Close()

	if !cfg.delimited {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return dump(cfg, stdout, data)
	}

	for i := 0; ; i++ {
		n, err := coded.ReadDelimitedSize(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		// The prefix is untrusted; only allocate what is actually there.
		data, err := bytestring.ReadFrom(io.LimitReader(r, int64(n)))
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if data.Len() != n {
			return fmt.Errorf("message %d: want %d bytes, got %d: %w", i, n, data.Len(), io.ErrUnexpectedEOF)
		}
		if !cfg.quiet {
			fmt.Fprintf(stdout, "# message %d, %d bytes\n", i, n)
		}
		if err := dump(cfg, stdout, data.Bytes()); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
}

// decompress transparently unwraps zstd input. The result must be closed.
func decompress(r *bufio.Reader) (io.ReadCloser, error) {
	magic, _ := r.Peek(len(zstdMagic))
	if !bytes.Equal(magic, zstdMagic) {
		return io.NopCloser(r), nil
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func dump(cfg config, w io.Writer, data []byte) error {
	set, err := unknown.Parse(data, coded.Options{MaxDepth: cfg.maxDepth})
	if err != nil {
		return err
	}
	if cfg.quiet {
		return nil
	}

	fmt.Fprint(w, protoscope.Write(data, protoscope.WriterOptions{
		ExplicitWireTypes:    cfg.explicitTypes,
		AllFieldsAreMessages: cfg.messages,
	}))
	fmt.Fprintf(w, "# %d fields, %d bytes\n", set.Len(), set.Size())
	return nil
}
