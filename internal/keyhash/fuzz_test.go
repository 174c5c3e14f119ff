//go:build go1.18

package keyhash

import (
	"math"
	"strings"
	"testing"
)

type record struct {
	Name  string
	Score float64
	Tags  []string
	Attrs map[string]int
	Next  *record
}

// buildArgs assembles an argument list from fuzzed primitives. Every call
// allocates afresh, so two calls with equal inputs yield deeply equal lists
// that share no memory. alias selects whether the holder points into
// itself or at a separate int of the same value.
func buildArgs(i int, s string, f float64, b bool, raw []byte, alias bool) []any {
	h := &holder{N: i}
	if alias {
		h.P = &h.N
	} else {
		n := i
		h.P = &n
	}

	leaf := &record{Name: s, Score: f, Tags: []string{s, strings.ToUpper(s)}}
	head := &record{
		Name:  strings.Repeat(s, 2),
		Score: -f,
		Attrs: map[string]int{s: i, "len": len(raw)},
		Next:  leaf,
	}

	return []any{
		i, s, f, b,
		append([]byte(nil), raw...),
		uint8(i), int32(i), complex(f, f),
		[]any{s, i, nil, []int{i, len(s)}},
		[3]string{s, "", s},
		map[string][]byte{s: append([]byte(nil), raw...)},
		point{X: i, Y: len(raw), tags: []string{s}},
		head,
		h,
	}
}

// Deeply equal argument lists must hash equally, whichever way they were
// built. Inputs containing NaN are not equal to themselves and only need
// to hash without panicking.
func FuzzSum(f *testing.F) {
	// Seed corpus: zero values, ASCII, Unicode, negatives, signed zero.
	f.Add(0, "", 0.0, false, []byte(nil))
	f.Add(1, "a", 1.5, true, []byte("x"))
	f.Add(-7, "αβγ", -0.0, false, []byte{0, 1, 2})
	f.Add(1<<40, "emoji🙂", 3e300, true, []byte(strings.Repeat("z", 64)))

	f.Fuzz(func(t *testing.T, i int, s string, fl float64, b bool, raw []byte) {
		// Cap lengths to keep memory bounded during fuzzing.
		const limit = 1 << 10
		if len(s) > limit {
			s = s[:limit]
		}
		if len(raw) > limit {
			raw = raw[:limit]
		}

		a := buildArgs(i, s, fl, b, raw, true)
		if Sum(a) != Sum(a) {
			t.Fatalf("Sum is not deterministic")
		}

		for _, alias := range []bool{true, false} {
			c := buildArgs(i, s, fl, b, raw, alias)
			if !Equal(a, c) {
				if !math.IsNaN(fl) {
					t.Fatalf("fresh build (alias=%v) is not deeply equal", alias)
				}
				continue
			}
			if Sum(a) != Sum(c) {
				t.Fatalf("equal args hash differently (alias=%v): %x != %x", alias, Sum(a), Sum(c))
			}
		}

		// Dropping the last argument must change the list and its length tag.
		if Equal(a, a[:len(a)-1]) {
			t.Fatalf("prefix must not be equal to the full list")
		}
	})
}
