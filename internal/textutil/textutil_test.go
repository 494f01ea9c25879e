package textutil

import "testing"

// TestIndent tests line indentation behavior
func TestIndent(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		prefix string
		want   string
	}{
		{
			name:   "single line",
			input:  "error: something broke",
			prefix: "    ",
			want:   "    error: something broke",
		},
		{
			name:   "multiple lines",
			input:  "line one\nline two",
			prefix: "  ",
			want:   "  line one\n  line two",
		},
		{
			name:   "empty lines skipped",
			input:  "a\n\nb",
			prefix: ">>",
			want:   ">>a\n\n>>b",
		},
		{
			name:   "empty string",
			input:  "",
			prefix: "    ",
			want:   "",
		},
		{
			name:   "trailing newline preserved",
			input:  "a\n",
			prefix: "    ",
			want:   "    a\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Indent(tt.input, tt.prefix)
			if got != tt.want {
				t.Errorf("Indent(%q, %q) = %q, want %q", tt.input, tt.prefix, got, tt.want)
			}
		})
	}
}
