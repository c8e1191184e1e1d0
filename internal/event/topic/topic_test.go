package topic

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"buffer.content.inserted", "buffer.content.inserted", true},
		{"buffer.content.inserted", "buffer.content.deleted", false},
		{"buffer.content.inserted", "buffer.content.*", true},
		{"buffer.content", "buffer.content.*", false},
		{"buffer.content.inserted", "buffer.*", false},
		{"buffer.content.inserted", "buffer.**", true},
		{"buffer", "buffer.**", true},
		{"config.changed.ui.theme", "config.changed.**", true},
		{"config.reloaded", "config.changed.**", false},
		{"a.b.c", "*.b.*", true},
		{"a.b.c", "**", true},
		{"", "**", true},
	}
	for _, tt := range tests {
		if got := tt.topic.Matches(tt.pattern); got != tt.want {
			t.Errorf("%q.Matches(%q) = %v, want %v", tt.topic, tt.pattern, got, tt.want)
		}
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		topic  Topic
		prefix Topic
		want   bool
	}{
		{"config.changed.ui", "config.changed", true},
		{"config.changed", "config.changed", true},
		{"config.changedx", "config.changed", false},
		{"config.changed.ui", "", true},
	}
	for _, tt := range tests {
		if got := tt.topic.HasPrefix(tt.prefix); got != tt.want {
			t.Errorf("%q.HasPrefix(%q) = %v, want %v", tt.topic, tt.prefix, got, tt.want)
		}
	}
}

func TestBaseAndSegments(t *testing.T) {
	if got := Topic("buffer.content.inserted").Base(); got != "inserted" {
		t.Errorf("Base() = %q", got)
	}
	if got := Topic("buffer").Base(); got != "buffer" {
		t.Errorf("Base() = %q", got)
	}
	if got := len(Topic("a.b.c").Segments()); got != 3 {
		t.Errorf("Segments() len = %d", got)
	}
	if got := Join("a", "b", "c"); got != "a.b.c" {
		t.Errorf("Join = %q", got)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		topic Topic
		want  bool
	}{
		{"buffer.content", true},
		{"buffer", true},
		{"", false},
		{".buffer", false},
		{"buffer.", false},
		{"buffer..content", false},
	}
	for _, tt := range tests {
		if got := tt.topic.IsValid(); got != tt.want {
			t.Errorf("%q.IsValid() = %v, want %v", tt.topic, got, tt.want)
		}
	}
}
