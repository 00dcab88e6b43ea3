package view

import "context"

// Command is an optimistic mutation. Apply changes the local snapshot and
// returns the inverse computed from the state it saw; Do performs the write.
type Command[T any] struct {
	Apply func(T) (T, func(T) T)
	Do    func(ctx context.Context) error
}

// Run applies c locally, then runs the write. When the write fails the
// inverse is applied and the error returned. There is no retry.
func Run[T any](ctx context.Context, l *Live[T], c Command[T]) error {
	var undo func(T) T
	l.Mutate(func(cur T) T {
		next, inv := c.Apply(cur)
		undo = inv
		return next
	})
	if err := c.Do(ctx); err != nil {
		if undo != nil {
			l.Mutate(undo)
		}
		return err
	}
	return nil
}
