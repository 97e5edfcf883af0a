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

package byteorder

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapInvolution(t *testing.T) {
	for _, v := range []uint16{0, 1, 0x0102, 0xff00, math.MaxUint16} {
		assert.Equal(t, v, Swap16(Swap16(v)))
	}
	for _, v := range []uint32{0, 1, 0x01020304, 0xdeadbeef, math.MaxUint32} {
		assert.Equal(t, v, Swap32(Swap32(v)))
	}
	for _, v := range []uint64{0, 1, 0x0102030405060708, math.MaxUint64} {
		assert.Equal(t, v, Swap64(Swap64(v)))
	}
	assert.EqualValues(t, 0x0201, Swap16(0x0102))
	assert.EqualValues(t, 0x04030201, Swap32(0x01020304))
	assert.EqualValues(t, uint64(0x0807060504030201), Swap64(0x0102030405060708))
}

func TestConvertIdentityOnHostOrder(t *testing.T) {
	c := NewConverter(HostOrder())
	assert.EqualValues(t, 0x0102, c.Convert16(0x0102))
	assert.EqualValues(t, 0x01020304, c.Convert32(0x01020304))
	assert.EqualValues(t, uint64(0x0102030405060708), c.Convert64(0x0102030405060708))

	other := LittleEndian
	if HostOrder() == LittleEndian {
		other = BigEndian
	}
	c.SetOrder(other)
	assert.Equal(t, other, c.Order())
	assert.EqualValues(t, 0x0201, c.Convert16(0x0102))
	assert.EqualValues(t, 0x04030201, c.Convert32(0x01020304))
	assert.EqualValues(t, 0x01020304, c.Convert32(c.Convert32(0x01020304)))
}

func TestConverterByteOrderLayout(t *testing.T) {
	b := make([]byte, 8)

	be := NewConverter(BigEndian)
	be.PutUint16(b, 0x0102)
	assert.Equal(t, []byte{0x01, 0x02}, b[:2])
	be.PutUint32(b, 0x01020304)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, b[:4])
	assert.EqualValues(t, 0x01020304, be.Uint32(b))
	be.PutUint64(b, 0x0102030405060708)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b)
	assert.Equal(t, binary.BigEndian.Uint64(b), be.Uint64(b))

	le := NewConverter(LittleEndian)
	le.PutUint16(b, 0x0102)
	assert.Equal(t, []byte{0x02, 0x01}, b[:2])
	assert.EqualValues(t, 0x0102, le.Uint16(b))
	le.PutUint32(b, 0x01020304)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b[:4])
	assert.Equal(t, binary.LittleEndian.Uint32(b), le.Uint32(b))
}

func TestParseOrder(t *testing.T) {
	o, ok := ParseOrder("little")
	require.True(t, ok)
	assert.Equal(t, LittleEndian, o)
	o, ok = ParseOrder("network")
	require.True(t, ok)
	assert.Equal(t, BigEndian, o)
	_, ok = ParseOrder("middle")
	assert.False(t, ok)
	assert.Equal(t, "big-endian", BigEndian.String())
}
