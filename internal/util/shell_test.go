package util

import "testing"

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"with'quote", "'with'\\''quote'"},
		{"", "''"},
		{"terrain:type=GridInspector", "'terrain:type=GridInspector'"},
		{"$variable", "'$variable'"},
		{"$(command)", "'$(command)'"},
		{"`backtick`", "'`backtick`'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ShellQuote(tt.input)
			if got != tt.expected {
				t.Errorf("ShellQuote(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestShellCommand(t *testing.T) {
	tests := []struct {
		base     string
		args     []string
		expected string
	}{
		{"terrain-inspector dump", []string{"terrain:type=GridInspector"}, "terrain-inspector dump 'terrain:type=GridInspector'"},
		{"  inspector  ", []string{"a b", "c'd"}, "inspector 'a b' 'c'\\''d'"},
		{"inspector", nil, "inspector"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := ShellCommand(tt.base, tt.args...)
			if got != tt.expected {
				t.Errorf("ShellCommand(%q, %q) = %q, want %q", tt.base, tt.args, got, tt.expected)
			}
		})
	}
}

func TestCommandName(t *testing.T) {
	tests := map[string]string{
		"terrain-inspector dump": "terrain-inspector",
		"  /opt/bin/insp --raw":  "/opt/bin/insp",
		"":                       "",
		"   ":                    "",
	}
	for in, want := range tests {
		if got := CommandName(in); got != want {
			t.Errorf("CommandName(%q) = %q, want %q", in, got, want)
		}
	}
}
