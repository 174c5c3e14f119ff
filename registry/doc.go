// Package registry swaps named computations for memoized versions and
// back.
//
// A Registry owns a table of name → definition. Replace wraps the current
// definition in a memo.Memo and installs it under the same name,
// optionally saving the original for Restore. Callers reach whatever is
// installed through Call or Lookup, so replacing is invisible to them.
//
//	reg := registry.New(registry.Options{Logger: logger})
//	reg.Define("price", fetchPrice)
//	if _, err := reg.Replace("price", time.Minute, true); err != nil {
//	    return err
//	}
//	v, err := reg.Call("price", "AAPL")
//	_ = reg.Restore("price")
//
// A name can be replaced once; replacing it again without Restore fails
// with ErrAlreadyMemoized. Restore without a saved original fails with
// ErrNotMemoized. Both errors are *NameError values naming the slot.
package registry
