package lsp

import "strings"

// GetInsertText returns the text an accepted completion item inserts:
// the textEdit's new text when present, else insertText, else the label.
func GetInsertText(item CompletionItem) string {
	if item.TextEdit != nil {
		return item.TextEdit.NewText
	}
	if item.InsertText != "" {
		return item.InsertText
	}
	return item.Label
}

// IsSnippet reports whether the completion item uses snippet syntax.
func IsSnippet(item CompletionItem) bool {
	return item.InsertTextFormat == InsertTextFormatSnippet
}

// ExpandSnippet renders snippet placeholders to plain text: $N tabstops
// are removed and ${N:default} placeholders keep their default value.
// Choice syntax, nested placeholders, and $VARIABLES are not handled.
func ExpandSnippet(snippet string) string {
	var result strings.Builder
	runes := []rune(snippet)
	i := 0

	for i < len(runes) {
		if runes[i] == '$' && i+1 < len(runes) {
			if runes[i+1] == '{' {
				end := -1
				for j := i + 2; j < len(runes); j++ {
					if runes[j] == '}' {
						end = j
						break
					}
				}
				if end != -1 {
					content := string(runes[i+2 : end])
					if colonIdx := strings.Index(content, ":"); colonIdx != -1 {
						result.WriteString(content[colonIdx+1:])
					}
					i = end + 1
					continue
				}
			} else if runes[i+1] >= '0' && runes[i+1] <= '9' {
				i += 2
				for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
					i++
				}
				continue
			}
		}
		result.WriteRune(runes[i])
		i++
	}
	return result.String()
}
