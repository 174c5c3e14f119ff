// Package keyhash hashes argument lists structurally.
//
// Sum is consistent with Equal: argument lists that are Equal always hash to
// the same value. The converse does not hold, so callers bucket by Sum and
// confirm with Equal.
package keyhash

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// kind tags keep e.g. int(1) and uint(1) apart and separate list elements.
const (
	tagNil byte = iota + 1
	tagBool
	tagInt
	tagUint
	tagFloat
	tagComplex
	tagString
	tagBytes
	tagSeq
	tagMap
	tagStruct
	tagPtr
	tagCycle
	tagFunc
	tagOpaque
)

// Sum returns a 64-bit structural hash of args. Argument order matters.
func Sum(args []any) uint64 {
	h := hasher{d: xxhash.New()}
	h.uint(uint64(len(args)))
	for _, a := range args {
		h.any(a)
	}
	return h.d.Sum64()
}

// Equal reports whether two argument lists are element-wise deeply equal.
func Equal(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// visit identifies a reference on the current path. The type is part of
// the key because a struct and its first field share an address.
type visit struct {
	ptr uintptr
	typ reflect.Type
}

type hasher struct {
	d    *xxhash.Digest
	buf  [8]byte
	seen map[visit]struct{}
}

// enter marks v as being on the current path. It reports false if v is
// already there, i.e. the walk closed a cycle.
func (h *hasher) enter(v reflect.Value) (visit, bool) {
	k := visit{ptr: v.Pointer(), typ: v.Type()}
	if _, ok := h.seen[k]; ok {
		return k, false
	}
	if h.seen == nil {
		h.seen = make(map[visit]struct{})
	}
	h.seen[k] = struct{}{}
	return k, true
}

func (h *hasher) tag(t byte) {
	h.buf[0] = t
	_, _ = h.d.Write(h.buf[:1])
}

func (h *hasher) uint(u uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], u)
	_, _ = h.d.Write(h.buf[:])
}

func (h *hasher) str(s string) {
	h.uint(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

// float hashes f so that +0 and -0 collide, since they compare equal.
func (h *hasher) float(f float64) {
	if f == 0 {
		f = 0
	}
	h.uint(math.Float64bits(f))
}

// any hashes common key types without reflection and falls back to a
// reflective walk for everything else.
func (h *hasher) any(a any) {
	switch v := a.(type) {
	case nil:
		h.tag(tagNil)
	case string:
		h.tag(tagString)
		h.str(v)
	case int:
		h.tag(tagInt)
		h.uint(uint64(v))
	case int64:
		h.tag(tagInt)
		h.uint(uint64(v))
	case uint64:
		h.tag(tagUint)
		h.uint(v)
	case bool:
		h.tag(tagBool)
		if v {
			h.uint(1)
		} else {
			h.uint(0)
		}
	case float64:
		h.tag(tagFloat)
		h.float(v)
	case []byte:
		h.tag(tagBytes)
		h.str(string(v))
	default:
		h.value(reflect.ValueOf(a))
	}
}

func (h *hasher) value(v reflect.Value) {
	switch v.Kind() {
	case reflect.Invalid:
		h.tag(tagNil)
	case reflect.Bool:
		h.tag(tagBool)
		if v.Bool() {
			h.uint(1)
		} else {
			h.uint(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		h.tag(tagInt)
		h.uint(uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		h.tag(tagUint)
		h.uint(v.Uint())
	case reflect.Float32, reflect.Float64:
		h.tag(tagFloat)
		h.float(v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		h.tag(tagComplex)
		h.float(real(c))
		h.float(imag(c))
	case reflect.String:
		h.tag(tagString)
		h.str(v.String())
	case reflect.Slice:
		if v.Len() == 0 {
			h.tag(tagSeq)
			h.uint(0)
			return
		}
		k, ok := h.enter(v)
		if !ok {
			h.tag(tagCycle)
			return
		}
		h.seq(v)
		delete(h.seen, k)
	case reflect.Array:
		h.seq(v)
	case reflect.Map:
		if v.Len() == 0 {
			h.tag(tagMap)
			h.uint(0)
			return
		}
		k, ok := h.enter(v)
		if !ok {
			h.tag(tagCycle)
			return
		}
		defer delete(h.seen, k)
		h.tag(tagMap)
		h.uint(uint64(v.Len()))
		// Iteration order is random: combine per-entry hashes commutatively.
		var sum uint64
		iter := v.MapRange()
		for iter.Next() {
			e := hasher{d: xxhash.New(), seen: h.seen}
			e.value(iter.Key())
			e.value(iter.Value())
			sum += e.d.Sum64()
			h.seen = e.seen
		}
		h.uint(sum)
	case reflect.Struct:
		h.tag(tagStruct)
		for i := 0; i < v.NumField(); i++ {
			h.value(v.Field(i))
		}
	case reflect.Pointer:
		if v.IsNil() {
			h.tag(tagNil)
			return
		}
		k, ok := h.enter(v)
		if !ok {
			h.tag(tagCycle)
			return
		}
		h.tag(tagPtr)
		h.value(v.Elem())
		delete(h.seen, k)
	case reflect.Interface:
		if v.IsNil() {
			h.tag(tagNil)
			return
		}
		h.value(v.Elem())
	case reflect.Func:
		// Funcs are only deeply equal when both are nil.
		h.tag(tagFunc)
	default:
		// Chan and UnsafePointer compare by identity.
		h.tag(tagOpaque)
		h.uint(uint64(v.Pointer()))
	}
}

func (h *hasher) seq(v reflect.Value) {
	h.tag(tagSeq)
	n := v.Len()
	h.uint(uint64(n))
	for i := 0; i < n; i++ {
		h.value(v.Index(i))
	}
}
