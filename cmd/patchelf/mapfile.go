package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// parseRenameMap reads a --rename-dynamic-symbols map file: one
// "old new" pair per line, rejecting names containing '@' and duplicate
// keys.
func parseRenameMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected two whitespace-separated tokens, got %d", path, lineNo, len(fields))
		}
		old, newName := fields[0], fields[1]
		if strings.Contains(old, "@") || strings.Contains(newName, "@") {
			return nil, fmt.Errorf("%s:%d: symbol names must not contain '@'", path, lineNo)
		}
		if _, dup := out[old]; dup {
			return nil, fmt.Errorf("%s:%d: duplicate key %q", path, lineNo, old)
		}
		out[old] = newName
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
