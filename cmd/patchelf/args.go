package main

import (
	"os"
	"strings"
)

// expandArg resolves the `@file` indirection: when s begins with '@',
// the remainder is a path whose entire contents become the argument
// (useful for rpaths too long to pass on a command line).
func expandArg(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	data, err := os.ReadFile(s[1:])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
