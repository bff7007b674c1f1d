package checksum

import (
	"strings"
	"testing"
)

const (
	// echo -n "hello" | sha256sum
	helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "hello", input: "hello", want: helloSHA},
		{name: "empty string", input: "", want: emptySHA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SHA256([]byte(tt.input)); got != tt.want {
				t.Errorf("SHA256(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
		want     bool
	}{
		{"matching", []byte("hello"), helloSHA, true},
		{"uppercase hex", []byte("hello"), strings.ToUpper(helloSHA), true},
		{"mismatch", []byte("hello"), strings.Repeat("0", 64), false},
		{"empty data", nil, emptySHA, true},
		{"empty expected", []byte("hello"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.data, tt.expected); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
