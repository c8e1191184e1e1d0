package events

import "github.com/dshills/keystorm/internal/event/topic"

// Config event topics.
const (
	// TopicConfigChanged is published when a setting changes. Section-
	// scoped subtopics ("config.changed.ui") carry the same payload.
	TopicConfigChanged topic.Topic = "config.changed"

	// TopicConfigReloaded is published when the configuration is reloaded.
	TopicConfigReloaded topic.Topic = "config.reloaded"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

// Configuration sources in order of precedence.
const (
	ConfigSourceDefault   ConfigSource = "default"
	ConfigSourceUser      ConfigSource = "user"
	ConfigSourceWorkspace ConfigSource = "workspace"
	ConfigSourceRuntime   ConfigSource = "runtime"
)

// ConfigChanged is published when a setting changes.
type ConfigChanged struct {
	// Path is the dot-notation path to the setting (e.g., "editor.tabSize").
	Path string

	// OldValue is the previous value.
	OldValue any

	// NewValue is the new value.
	NewValue any

	// Source indicates where the new value came from.
	Source ConfigSource
}

// ConfigReloaded is published when the configuration is reloaded.
type ConfigReloaded struct {
	// Source is what triggered the reload.
	Source string
}
