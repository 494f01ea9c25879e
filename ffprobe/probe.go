// Package ffprobe is the frame-count oracle: it verifies encoded artifacts
// by counting their packets with the ffprobe command-line tool.
package ffprobe

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// Stream carries the per-stream fields we ask ffprobe for.
type Stream struct {
	Index         int    `json:"index"`
	CodecType     string `json:"codec_type"`
	NBReadPackets string `json:"nb_read_packets"`
}

// probeOutput represents the raw JSON output from ffprobe.
type probeOutput struct {
	Streams []Stream `json:"streams"`
}

// Counter counts frames via ffprobe. The zero value is ready to use.
type Counter struct{}

// NumFrames counts the frames of the first video stream in the artifact at
// path.
//
// One packet per frame holds for the elementary video streams the encode
// stage produces, and counting packets avoids a full decode.
func (Counter) NumFrames(path string) (int, error) {
	return NumFrames(path)
}

// NumFrames counts the frames of the first video stream in the file at path.
func NumFrames(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("artifact path cannot be empty")
	}

	// -count_packets walks the stream so nb_read_packets reflects what is
	// actually in the file, not what the header claims.
	args := []string{
		"-v", "error",
		"-count_packets",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_read_packets",
		"-print_format", "json",
		path,
	}

	cmd := exec.Command("ffprobe", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w (output: %s)", err, string(output))
	}

	return parseFrameCount(output)
}

// parseFrameCount extracts the packet count from ffprobe's JSON output.
func parseFrameCount(output []byte) (int, error) {
	var result probeOutput
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}

	if len(result.Streams) == 0 {
		return 0, fmt.Errorf("no video stream found in artifact")
	}

	raw := result.Streams[0].NBReadPackets
	if raw == "" {
		return 0, fmt.Errorf("ffprobe reported no packet count")
	}

	frames, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse packet count '%s': %w", raw, err)
	}

	return frames, nil
}
