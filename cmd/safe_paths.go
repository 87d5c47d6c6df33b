package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/shared/security"
)

// maxInputBytes bounds any file or stdin payload handed to a scan
const maxInputBytes = 4 << 20

// readInputSource reads a scan payload from a file, or from stdin when path
// is "-". Paths may start with ~.
func readInputSource(path string, stdin io.Reader) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		if stdin == nil {
			return nil, fmt.Errorf("stdin is not available")
		}
		r = stdin
	} else {
		resolved, err := security.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(resolved) // #nosec G304 -- operator-supplied input file
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(data) > maxInputBytes {
		return nil, fmt.Errorf("input exceeds %d bytes", maxInputBytes)
	}
	return data, nil
}

// splitInputLines returns the non-blank lines of data, skipping # comments
func splitInputLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxInputBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
