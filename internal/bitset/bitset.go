// Package bitset implements a growable dense set of small non-negative integers.
package bitset

import (
	"math/bits"
	"strconv"
	"strings"
)

// Set is a dense bit set. The zero value is an empty set ready to use.
// Copying a Set shares its storage; use Copy for an independent set.
type Set struct {
	b []uint64
}

// New returns an empty set with room for n elements.
func New(n int) Set {
	if n <= 0 {
		return Set{}
	}
	return Set{b: make([]uint64, (n+63)/64)}
}

// Set adds i to the set.
func (s *Set) Set(i int) {
	w, j := ij(i)
	s.grow(w)
	s.b[w] |= 1 << j
}

// Clear removes i from the set.
func (s *Set) Clear(i int) {
	w, j := ij(i)
	if w >= len(s.b) {
		return
	}
	s.b[w] &^= 1 << j
}

// IsSet reports whether i is in the set.
func (s Set) IsSet(i int) bool {
	w, j := ij(i)
	if w >= len(s.b) {
		return false
	}
	return s.b[w]&(1<<j) != 0
}

// Or adds every element of x and reports whether s changed.
func (s *Set) Or(x Set) bool {
	s.grow(len(x.b) - 1)
	changed := false
	for i, w := range x.b {
		n := s.b[i] | w
		if n != s.b[i] {
			s.b[i] = n
			changed = true
		}
	}
	return changed
}

// AndNot removes every element of x.
func (s *Set) AndNot(x Set) {
	for i, w := range x.b {
		if i == len(s.b) {
			break
		}
		s.b[i] &^= w
	}
}

// Copy returns an independent copy of s.
func (s Set) Copy() Set {
	if len(s.b) == 0 {
		return Set{}
	}
	return Set{b: append([]uint64(nil), s.b...)}
}

// Equal reports whether s and x hold the same elements.
func (s Set) Equal(x Set) bool {
	short, long := s.b, x.b
	if len(short) > len(long) {
		short, long = long, short
	}
	for i := range short {
		if short[i] != long[i] {
			return false
		}
	}
	for _, w := range long[len(short):] {
		if w != 0 {
			return false
		}
	}
	return true
}

// Size returns the number of elements.
func (s Set) Size() (n int) {
	for _, w := range s.b {
		n += bits.OnesCount64(w)
	}
	return n
}

// Empty reports whether the set has no elements.
func (s Set) Empty() bool {
	for _, w := range s.b {
		if w != 0 {
			return false
		}
	}
	return true
}

// Range calls f for each element in increasing order until f returns false.
func (s Set) Range(f func(i int) bool) {
	for i, w := range s.b {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			if !f(i*64 + j) {
				return
			}
			w &^= 1 << j
		}
	}
}

// Elems returns the elements in increasing order.
func (s Set) Elems() []int {
	out := make([]int, 0, s.Size())
	s.Range(func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}

// First returns the smallest element or -1.
func (s Set) First() int {
	for i, w := range s.b {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}

// FirstClear returns the smallest non-negative integer not in the set.
func (s Set) FirstClear() int {
	for i, w := range s.b {
		if w != ^uint64(0) {
			return i*64 + bits.TrailingZeros64(^w)
		}
	}
	return len(s.b) * 64
}

// Last returns the largest element or -1.
func (s Set) Last() int {
	for i := len(s.b) - 1; i >= 0; i-- {
		if s.b[i] != 0 {
			return i*64 + 63 - bits.LeadingZeros64(s.b[i])
		}
	}
	return -1
}

func (s Set) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	s.Range(func(i int) bool {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(strconv.Itoa(i))
		return true
	})
	sb.WriteByte('}')
	return sb.String()
}

func ij(pos int) (w, j int) {
	return pos / 64, pos % 64
}

func (s *Set) grow(w int) {
	for w >= len(s.b) {
		s.b = append(s.b, 0)
	}
}
