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

// Package byteorder converts fixed-width integers between the host byte order
// and a chosen target order.
//
// A Converter also satisfies encoding/binary.ByteOrder: values are converted to
// the target order and then laid out in host memory order, which puts them on
// the wire in the target layout.
package byteorder

import (
	"encoding/binary"
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// Order is a byte order of multi-byte integers.
type Order int32

const (
	// BigEndian puts the most significant byte first, a.k.a. network byte order.
	BigEndian Order = iota
	// LittleEndian puts the least significant byte first.
	LittleEndian
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case BigEndian:
		return "big-endian"
	case LittleEndian:
		return "little-endian"
	default:
		return "unknown"
	}
}

// ParseOrder maps "little", "little-endian", "le", "big", "big-endian", "be"
// and "network" to an Order.
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "little", "little-endian", "le", "LittleEndian":
		return LittleEndian, true
	case "big", "big-endian", "be", "network", "BigEndian":
		return BigEndian, true
	}
	return BigEndian, false
}

var (
	hostOrder Order
	native    binary.ByteOrder
)

func init() {
	var probe uint16 = 0x0102
	if *(*byte)(unsafe.Pointer(&probe)) == 0x02 {
		hostOrder, native = LittleEndian, binary.LittleEndian
	} else {
		hostOrder, native = BigEndian, binary.BigEndian
	}
}

// HostOrder returns the byte order of the running machine.
func HostOrder() Order {
	return hostOrder
}

// Swap16 reverses the bytes of v.
func Swap16(v uint16) uint16 { return bits.ReverseBytes16(v) }

// Swap32 reverses the bytes of v.
func Swap32(v uint32) uint32 { return bits.ReverseBytes32(v) }

// Swap64 reverses the bytes of v.
func Swap64(v uint64) uint64 { return bits.ReverseBytes64(v) }

// Converter converts integers from host order to its target order.
// The target may be changed at any time; conversions in flight see either the
// old or the new order.
type Converter struct {
	target atomic.Int32
}

// NewConverter returns a Converter targeting the given order.
func NewConverter(target Order) *Converter {
	c := new(Converter)
	c.SetOrder(target)
	return c
}

// SetOrder changes the target order.
func (c *Converter) SetOrder(target Order) {
	c.target.Store(int32(target))
}

// Order returns the target order.
func (c *Converter) Order() Order {
	return Order(c.target.Load())
}

func (c *Converter) identity() bool {
	return c.Order() == hostOrder
}

// Convert16 converts v to the target order, it is its own inverse.
func (c *Converter) Convert16(v uint16) uint16 {
	if c.identity() {
		return v
	}
	return Swap16(v)
}

// Convert32 converts v to the target order, it is its own inverse.
func (c *Converter) Convert32(v uint32) uint32 {
	if c.identity() {
		return v
	}
	return Swap32(v)
}

// Convert64 converts v to the target order, it is its own inverse.
func (c *Converter) Convert64(v uint64) uint64 {
	if c.identity() {
		return v
	}
	return Swap64(v)
}

var _ binary.ByteOrder = (*Converter)(nil)

// Uint16 reads a value stored in the target order from b.
func (c *Converter) Uint16(b []byte) uint16 { return c.Convert16(native.Uint16(b)) }

// Uint32 reads a value stored in the target order from b.
func (c *Converter) Uint32(b []byte) uint32 { return c.Convert32(native.Uint32(b)) }

// Uint64 reads a value stored in the target order from b.
func (c *Converter) Uint64(b []byte) uint64 { return c.Convert64(native.Uint64(b)) }

// PutUint16 stores v into b in the target order.
func (c *Converter) PutUint16(b []byte, v uint16) { native.PutUint16(b, c.Convert16(v)) }

// PutUint32 stores v into b in the target order.
func (c *Converter) PutUint32(b []byte, v uint32) { native.PutUint32(b, c.Convert32(v)) }

// PutUint64 stores v into b in the target order.
func (c *Converter) PutUint64(b []byte, v uint64) { native.PutUint64(b, c.Convert64(v)) }

func (c *Converter) String() string {
	return "Converter(" + c.Order().String() + ")"
}
