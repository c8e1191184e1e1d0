// Package input defines the action vocabulary the dispatch pipeline
// speaks: Action (name, count, register, motion, text object, args) and
// the Context an action is evaluated against (mode, file, pending
// operator state).
//
// Key events arrive from a host-provided KeySource as key.Event values;
// the mode subpackage translates them into actions or literal text, and
// the dispatcher routes the actions to handlers. This package owns only
// the shared types between those stages.
//
// # Modal Editing
//
//   - Normal mode: navigation and commands
//   - Insert mode: text entry
//   - Visual modes: selection (character and line wise)
//   - Command mode: ex-style command entry
//   - Operator-pending and replace modes complete the Vim set
package input
