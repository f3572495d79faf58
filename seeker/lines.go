package seeker

import (
	"bufio"
	"errors"
	"io"
)

// ReadLines splits r after every '\n', keeping the terminators. A final line
// without terminator is returned as is; empty input gives no lines.
func ReadLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
	}
}
