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

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/tlvmux/tlvmux/pkg/tlv"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdHelp
	cmdQuit
	cmdSend
)

type command struct {
	kind commandKind
	msg  tlv.Message
}

// parseCommand turns one input line into a command. The text of "send" is
// everything after the type, inner spaces included.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}

	verb, rest, _ := strings.Cut(line, " ")
	switch verb {
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	case "send", "hex":
	default:
		return command{}, fmt.Errorf("unknown command %q, try help", verb)
	}

	typeField, payload, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if typeField == "" {
		return command{}, fmt.Errorf("usage: %s <type> <value>", verb)
	}
	typ, err := strconv.ParseUint(typeField, 0, 16)
	if err != nil {
		return command{}, fmt.Errorf("invalid type %q: %w", typeField, err)
	}

	value := []byte(payload)
	if verb == "hex" {
		if value, err = hex.DecodeString(strings.ReplaceAll(payload, " ", "")); err != nil {
			return command{}, fmt.Errorf("invalid hex value: %w", err)
		}
	}
	return command{kind: cmdSend, msg: tlv.NewMessage(uint16(typ), value)}, nil
}
