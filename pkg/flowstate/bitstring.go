// Copyright 2026 The cmlids Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flowstate

import (
	"math/big"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// Bitstring is a fixed-width unsigned value as stored in the flow register.
type Bitstring struct {
	width int
	value *big.Int
}

// FromBytes interprets b as a big-endian register value of the given width.
func FromBytes(b []byte, width int) (Bitstring, error) {
	v := new(big.Int).SetBytes(b)
	if v.BitLen() > width {
		return Bitstring{}, serrors.New("value exceeds width",
			"width", width, "bits", v.BitLen())
	}
	return Bitstring{width: width, value: v}, nil
}

// Width returns the width in bits.
func (b Bitstring) Width() int {
	return b.width
}

// Bytes returns the big-endian value padded to whole bytes.
func (b Bitstring) Bytes() []byte {
	buf := make([]byte, (b.width+7)/8)
	if b.value != nil {
		b.value.FillBytes(buf)
	}
	return buf
}

// Big returns a copy of the value.
func (b Bitstring) Big() *big.Int {
	if b.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.value)
}

// Encode packs s into a bitstring. Values wider than their field are
// truncated to the field width.
func (l *Layout) Encode(s *State) (Bitstring, error) {
	if s.layout != l {
		return Bitstring{}, serrors.New("state of a different layout")
	}
	v := new(big.Int)
	field := new(big.Int)
	for i, f := range l.fields {
		v.Lsh(v, uint(f.Width))
		field.SetUint64(s.values[i] & mask(f.Width))
		v.Or(v, field)
	}
	return Bitstring{width: l.width, value: v}, nil
}

// Decode unpacks a bitstring of the layout width.
func (l *Layout) Decode(b Bitstring) (*State, error) {
	if b.width != l.width {
		return nil, serrors.New("bitstring width mismatch",
			"expected", l.width, "actual", b.width)
	}
	s := l.NewState()
	v := b.Big()
	field := new(big.Int)
	m := new(big.Int)
	for i := len(l.fields) - 1; i >= 0; i-- {
		w := l.fields[i].Width
		m.SetUint64(mask(w))
		s.values[i] = field.And(v, m).Uint64()
		v.Rsh(v, uint(w))
	}
	return s, nil
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}
