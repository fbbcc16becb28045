package mockserver

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nachoal/planchat-go/transport"
)

// LoadScript reads a JSONL reply script. Client message frames in the file
// are ignored so a recorded session can be reused as a script.
func LoadScript(r io.Reader) ([]transport.Frame, error) {
	var frames []transport.Frame
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f, err := transport.DecodeFrame([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if f.Type == transport.FrameMessage {
			continue
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return frames, nil
}
