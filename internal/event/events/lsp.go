package events

import "github.com/dshills/keystorm/internal/event/topic"

// LSP event topics.
const (
	// TopicLSPServerInitialized is published when an LSP server is ready.
	TopicLSPServerInitialized topic.Topic = "lsp.server.initialized"

	// TopicLSPServerShutdown is published when an LSP server closes.
	TopicLSPServerShutdown topic.Topic = "lsp.server.shutdown"

	// TopicLSPServerError is published on LSP server errors.
	TopicLSPServerError topic.Topic = "lsp.server.error"

	// TopicLSPDiagnosticsPublished is published when diagnostics are received.
	TopicLSPDiagnosticsPublished topic.Topic = "lsp.diagnostics.published"

	// TopicLSPDiagnosticsCleared is published when diagnostics are cleared.
	TopicLSPDiagnosticsCleared topic.Topic = "lsp.diagnostics.cleared"
)

// DiagnosticSeverity represents the severity of a diagnostic.
type DiagnosticSeverity int

// Diagnostic severities (matching LSP specification).
const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

// Diagnostic is one reported problem, positioned in buffer coordinates.
type Diagnostic struct {
	// Range is the range of the diagnostic.
	Range Range

	// Severity indicates the severity level.
	Severity DiagnosticSeverity

	// Code is the diagnostic code.
	Code string

	// Source identifies the source of the diagnostic.
	Source string

	// Message describes the diagnostic.
	Message string

	// RelatedInformation provides additional context.
	RelatedInformation []DiagnosticRelatedInfo
}

// DiagnosticRelatedInfo provides additional context for a diagnostic.
type DiagnosticRelatedInfo struct {
	// Location is where the related information is.
	Location Location

	// Message describes the related information.
	Message string
}

// Location represents a location in a document.
type Location struct {
	// URI is the document URI.
	URI string

	// Range is the range within the document.
	Range Range
}

// LSPServerInitialized is published when an LSP server is ready.
type LSPServerInitialized struct {
	// LanguageID identifies the language the server handles.
	LanguageID string

	// ServerName is the server's reported name.
	ServerName string
}

// LSPServerShutdown is published when an LSP server closes.
type LSPServerShutdown struct {
	// LanguageID identifies the language the server handled.
	LanguageID string
}

// LSPServerError is published on LSP server errors.
type LSPServerError struct {
	// LanguageID identifies the language.
	LanguageID string

	// Message describes the error.
	Message string
}

// LSPDiagnosticsPublished is published when diagnostics are received.
type LSPDiagnosticsPublished struct {
	// URI is the document URI.
	URI string

	// LanguageID identifies the language.
	LanguageID string

	// Diagnostics are the published diagnostics.
	Diagnostics []Diagnostic

	// Version is the document version.
	Version int
}

// LSPDiagnosticsCleared is published when diagnostics are cleared.
type LSPDiagnosticsCleared struct {
	// URI is the document URI.
	URI string

	// LanguageID identifies the language.
	LanguageID string
}
