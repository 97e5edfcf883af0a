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

// Package tlv implements the type-length-value framing used on the wire:
//
//	+--------------+----------------+------------------------+
//	| type: uint16 | length: uint32 | value: [length]byte    |
//	+--------------+----------------+------------------------+
//
// Header fields are written in the codec byte order, big-endian unless told
// otherwise. The value is opaque and never converted.
package tlv

import (
	"math"

	"github.com/tlvmux/tlvmux/pkg/byteorder"
	"github.com/tlvmux/tlvmux/pkg/errors"
)

const (
	// HeaderSize is the number of bytes preceding the value.
	HeaderSize = 6

	// DefaultMaxValueLength caps the declared value length, 32 MiB.
	DefaultMaxValueLength = 32 << 20
)

// Message is a single decoded TLV frame.
type Message struct {
	Type   uint16
	Length uint32
	Value  []byte
}

// NewMessage builds a message whose Length matches value.
func NewMessage(typ uint16, value []byte) Message {
	return Message{Type: typ, Length: uint32(len(value)), Value: value}
}

// Size returns the encoded size of the message.
func (m Message) Size() int {
	return HeaderSize + int(m.Length)
}

// Codec encodes and decodes TLV frames.
type Codec struct {
	conv      *byteorder.Converter
	maxLength uint32
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithByteOrder sets the header byte order.
func WithByteOrder(order byteorder.Order) CodecOption {
	return func(c *Codec) {
		c.conv.SetOrder(order)
	}
}

// WithMaxValueLength sets the largest acceptable declared length, 0 disables the check.
func WithMaxValueLength(n uint32) CodecOption {
	return func(c *Codec) {
		c.maxLength = n
	}
}

// NewCodec returns a big-endian codec capped at DefaultMaxValueLength.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		conv:      byteorder.NewConverter(byteorder.BigEndian),
		maxLength: DefaultMaxValueLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetByteOrder changes the header byte order.
func (c *Codec) SetByteOrder(order byteorder.Order) {
	c.conv.SetOrder(order)
}

// ByteOrder returns the header byte order.
func (c *Codec) ByteOrder() byteorder.Order {
	return c.conv.Order()
}

// MaxValueLength returns the cap on declared lengths, 0 means unlimited.
func (c *Codec) MaxValueLength() uint32 {
	return c.maxLength
}

// Encode returns exactly msg.Size() bytes. A Value shorter than Length is
// zero-padded, a longer one is truncated.
func (c *Codec) Encode(msg Message) []byte {
	return c.AppendEncode(make([]byte, 0, msg.Size()), msg)
}

// AppendEncode appends the encoded msg to dst and returns the extended slice.
func (c *Codec) AppendEncode(dst []byte, msg Message) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, msg.Size())...)
	frame := dst[start:]
	c.conv.PutUint16(frame, msg.Type)
	c.conv.PutUint32(frame[2:], msg.Length)
	copy(frame[HeaderSize:], msg.Value)
	return dst
}

// Header decodes the type and declared length of the frame at the front of buf.
func (c *Codec) Header(buf []byte) (typ uint16, length uint32, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, errors.ErrIncompletePacket
	}
	typ, length = c.conv.Uint16(buf), c.conv.Uint32(buf[2:])
	if c.maxLength > 0 && length > c.maxLength {
		return typ, length, errors.ErrFrameTooLarge
	}
	// A whole frame must be addressable as an int, which 32-bit targets may not do.
	if uint64(length) > uint64(math.MaxInt-HeaderSize) {
		return typ, length, errors.ErrFrameTooLarge
	}
	return
}

// Decode decodes the frame at the front of buf and reports how many bytes it
// took. When buf does not yet hold a whole frame it returns
// errors.ErrIncompletePacket and consumes nothing. The returned Value does not
// alias buf.
func (c *Codec) Decode(buf []byte) (msg Message, consumed int, err error) {
	typ, length, err := c.Header(buf)
	if err != nil {
		return Message{}, 0, err
	}
	total := HeaderSize + int(length)
	if len(buf) < total {
		return Message{}, 0, errors.ErrIncompletePacket
	}
	value := make([]byte, length)
	copy(value, buf[HeaderSize:total])
	return Message{Type: typ, Length: length, Value: value}, total, nil
}

var defaultCodec = NewCodec()

// Encode encodes msg with the default big-endian codec.
func Encode(msg Message) []byte {
	return defaultCodec.Encode(msg)
}

// Decode decodes buf with the default big-endian codec.
func Decode(buf []byte) (Message, int, error) {
	return defaultCodec.Decode(buf)
}
