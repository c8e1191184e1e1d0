// Package key defines the normalized key event vocabulary: a Key code
// (special keys plus KeyRune for printable input), the pressed rune, and
// modifier flags. Hosts construct Events with NewRuneEvent and
// NewSpecialEvent; nothing in the core decodes terminal escape
// sequences.
package key
