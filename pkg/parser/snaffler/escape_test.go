package snaffler

import "testing"

func TestDecodeEscapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no escapes pass through",
			input:    "password=hunter2",
			expected: "password=hunter2",
		},
		{
			name:     "literal crlf becomes newline",
			input:    `user=admin\r\npass=secret`,
			expected: "user=admin\npass=secret",
		},
		{
			name:     "literal newline and tab",
			input:    `key:\n\tvalue`,
			expected: "key:\n\tvalue",
		},
		{
			name:     "escaped space and quote",
			input:    `it\ is\ \"fine\"`,
			expected: `it is "fine"`,
		},
		{
			name:     "escaped metacharacters drop the backslash",
			input:    `regex \[a-z\]\(\)\.\*`,
			expected: `regex [a-z]().*`,
		},
		{
			name:     "double backslash is not re-unescaped",
			input:    `path=C:\\temp\\[x]`,
			expected: `path=C:\temp\[x]`,
		},
		{
			name:     "dangling backslash kept",
			input:    `odd\zvalue`,
			expected: `odd\zvalue`,
		},
		{
			name:     "blank lines collapsed and trimmed",
			input:    `  first\n\n\nsecond  `,
			expected: "first\nsecond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DecodeEscapes(tt.input)
			if result != tt.expected {
				t.Errorf("DecodeEscapes(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDecodeEscapes_SinglePass(t *testing.T) {
	// A backslash produced by decoding must never be consumed again: the
	// four characters \\ [ decode to a literal backslash followed by a
	// bracket, not to the bracket alone.
	result := DecodeEscapes(`\\[`)
	if result != `\[` {
		t.Errorf("DecodeEscapes(`\\\\[`) = %q, expected %q", result, `\[`)
	}

	// \\n is an escaped backslash followed by a plain n, not a newline.
	result = DecodeEscapes(`a\\nb`)
	if result != `a\nb` {
		t.Errorf("DecodeEscapes(`a\\\\nb`) = %q, expected %q", result, `a\nb`)
	}
}
