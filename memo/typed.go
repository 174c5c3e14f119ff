package memo

// Wrap0 memoizes a niladic computation. All calls share one entry.
func Wrap0[R any](fn func() (R, error), opt Options) (func() (R, error), *Memo) {
	m := New(func(...any) (any, error) {
		return fn()
	}, opt)
	return func() (R, error) {
		return result[R](m.Call())
	}, m
}

// Wrap1 memoizes fn by its single argument.
func Wrap1[A, R any](fn func(A) (R, error), opt Options) (func(A) (R, error), *Memo) {
	m := New(func(args ...any) (any, error) {
		return fn(arg[A](args[0]))
	}, opt)
	return func(a A) (R, error) {
		return result[R](m.Call(a))
	}, m
}

// Wrap2 memoizes fn by its ordered argument pair.
func Wrap2[A, B, R any](fn func(A, B) (R, error), opt Options) (func(A, B) (R, error), *Memo) {
	m := New(func(args ...any) (any, error) {
		return fn(arg[A](args[0]), arg[B](args[1]))
	}, opt)
	return func(a A, b B) (R, error) {
		return result[R](m.Call(a, b))
	}, m
}

// Wrap3 memoizes fn by its ordered argument triple.
func Wrap3[A, B, C, R any](fn func(A, B, C) (R, error), opt Options) (func(A, B, C) (R, error), *Memo) {
	m := New(func(args ...any) (any, error) {
		return fn(arg[A](args[0]), arg[B](args[1]), arg[C](args[2]))
	}, opt)
	return func(a A, b B, c C) (R, error) {
		return result[R](m.Call(a, b, c))
	}, m
}

// arg converts a boxed argument back to T. A nil interface argument
// becomes T's zero value.
func arg[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

func result[R any](v any, err error) (R, error) {
	if err != nil || v == nil {
		var zero R
		return zero, err
	}
	return v.(R), nil
}
