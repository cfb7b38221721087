// Package tasks provides a LIFO cleanup stack for GPU resource teardown.
//
// Every component that acquires a Vulkan handle pushes its release
// action immediately after a successful creation call, before the next
// fallible operation. Flushing the stack at shutdown (or after a
// failed initialization) then releases everything acquired so far in
// exact reverse-creation order, which is the order Vulkan requires.
package tasks

// Stack records cleanup actions in registration order and runs them in
// reverse. It is the sole teardown mechanism for GPU handles; there is
// no reference counting.
//
// A Stack is confined to a single goroutine.
type Stack struct {
	actions []func()
}

// Push appends a cleanup action. The action must capture the handles
// it releases by value at the call site.
func (s *Stack) Push(action func()) {
	s.actions = append(s.actions, action)
}

// Flush runs all pushed actions in reverse-registration order, each
// exactly once, then clears the record. Calling Flush again without
// intervening pushes is a no-op.
func (s *Stack) Flush() {
	for i := len(s.actions) - 1; i >= 0; i-- {
		s.actions[i]()
	}
	s.actions = nil
}

// Len reports the number of pending actions.
func (s *Stack) Len() int {
	return len(s.actions)
}
