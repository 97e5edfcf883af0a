// Copyright (c) 2023 The tlvmux Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command tlvmux-cli is an interactive client for a tlvmux server. Every
// "send" line becomes one TLV frame; frames coming back are printed as they
// arrive.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tlvmux/tlvmux/pkg/byteorder"
	"github.com/tlvmux/tlvmux/pkg/errors"
	"github.com/tlvmux/tlvmux/pkg/tlv"
)

var (
	addr      = flag.String("addr", "127.0.0.1:8888", "server address")
	order     = flag.String("byte-order", "big", "byte order of TLV headers: big or little")
	timeout   = flag.Duration("timeout", 5*time.Second, "dial timeout")
	maxLength = flag.Uint("max-frame-size", tlv.DefaultMaxValueLength, "largest value length accepted from the server")
)

const helpText = `commands:
  send <type> <text>   send text as the value of a frame of the given type
  hex <type> <hex>     send hex-decoded bytes as the value
  help                 show this help
  quit                 close the connection and exit
`

func main() {
	flag.Parse()

	bo, ok := byteorder.ParseOrder(*order)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown byte order %q\n", *order)
		os.Exit(2)
	}
	codec := tlv.NewCodec(tlv.WithByteOrder(bo), tlv.WithMaxValueLength(uint32(*maxLength)))

	if err := run(codec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(codec *tlv.Codec) error {
	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "tlvmux> ",
		HistoryFile:       os.ExpandEnv("$HOME/.tlvmux_history"),
		HistoryLimit:      1000,
		HistorySearchFold: true,
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("send"),
			readline.PcItem("hex"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %v", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "connected to %s (%s headers)\n", conn.RemoteAddr(), codec.ByteOrder())
	go printReplies(conn, codec, rl)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
			continue
		}
		switch cmd.kind {
		case cmdNone:
		case cmdHelp:
			fmt.Fprint(rl.Stdout(), helpText)
		case cmdQuit:
			return nil
		case cmdSend:
			if _, err = conn.Write(codec.Encode(cmd.msg)); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

// printReplies decodes frames from the server until the connection ends.
func printReplies(conn net.Conn, codec *tlv.Codec, rl *readline.Instance) {
	var buf []byte
	chunk := make([]byte, 64*1024)
	for {
		n, err := conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		for {
			msg, consumed, derr := codec.Decode(buf)
			if derr == errors.ErrIncompletePacket {
				break
			}
			if derr != nil {
				fmt.Fprintf(rl.Stderr(), "\nbad frame from server: %v\n", derr)
				rl.Close()
				return
			}
			buf = buf[consumed:]
			fmt.Fprintf(rl.Stdout(), "<- %s\n", formatMessage(msg))
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(rl.Stderr(), "\nconnection error: %v\n", err)
			} else {
				fmt.Fprintln(rl.Stdout(), "\nserver closed the connection")
			}
			rl.Close()
			return
		}
	}
}

func formatMessage(msg tlv.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "type=%d len=%d", msg.Type, msg.Length)
	if isPrintable(msg.Value) {
		fmt.Fprintf(&b, " value=%q", msg.Value)
	} else {
		fmt.Fprintf(&b, " value=0x%x", msg.Value)
	}
	return b.String()
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
