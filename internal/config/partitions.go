package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadPartitions reads partition names, one per line. Blank lines and lines
// starting with # are skipped.
func LoadPartitions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadPartitions: %w", err)
	}
	defer f.Close()

	names, err := ParsePartitions(f)
	if err != nil {
		return nil, fmt.Errorf("LoadPartitions: %s: %w", path, err)
	}
	return names, nil
}

// ParsePartitions reads partition names from r, dropping repeats.
func ParsePartitions(r io.Reader) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no partitions listed")
	}
	return names, nil
}
