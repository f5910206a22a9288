package tracker

// signal is a synchronous observer list. Emit calls subscribers in
// subscription order on the caller's goroutine, which is always the loop.
type signal[T any] struct {
	subs []func(T)
}

// Subscribe registers fn and returns a function removing it
func (s *signal[T]) Subscribe(fn func(T)) func() {
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1
	return func() {
		if idx < len(s.subs) {
			s.subs[idx] = nil
		}
	}
}

func (s *signal[T]) Emit(v T) {
	for _, fn := range s.subs {
		if fn != nil {
			fn(v)
		}
	}
}
