// Package command builds and runs the external encoder invocation for one
// encode pass of one chunk.
package command

import (
	"errors"
	"os"
	"os/exec"
	"strconv"

	"parenc/broker"
	"parenc/config"
	"parenc/models"
)

// FFmpeg is the encode collaborator: it turns (chunk, pass) into an ffmpeg
// invocation and reports failures with the captured output so the broker can
// retry and log them.
type FFmpeg struct {
	video     config.VideoConfig
	passes    int
	extraArgs []string
}

// NewFFmpeg creates an encode collaborator for the given video settings and
// total pass count.
func NewFFmpeg(video config.VideoConfig, passes int) *FFmpeg {
	return &FFmpeg{
		video:  video,
		passes: passes,
	}
}

// SetExtraArgs appends raw encoder arguments to every pass invocation.
func (f *FFmpeg) SetExtraArgs(args ...string) *FFmpeg {
	f.extraArgs = append(f.extraArgs, args...)
	return f
}

// BuildArgs constructs the ffmpeg argument list for one pass of a chunk.
//
// Intermediate passes only gather statistics: their output is discarded and
// the stats log, keyed by the chunk's output path, carries the analysis into
// the final pass. The final pass writes chunk.Output.
func (f *FFmpeg) BuildArgs(chunk *models.Chunk, pass int) []string {
	quantizer := chunk.Quantizer
	if quantizer <= 0 {
		quantizer = f.video.Quantizer
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", chunk.Source,
		"-c:v", f.video.Codec,
		"-crf", strconv.Itoa(quantizer),
		"-b:v", "0",
		"-cpu-used", f.video.Preset,
		"-an",
	}

	if f.passes > 1 {
		// ffmpeg only distinguishes analysis (1) and final (2) passes.
		statsPass := 2
		if pass < f.passes {
			statsPass = 1
		}
		args = append(args,
			"-pass", strconv.Itoa(statsPass),
			"-passlogfile", chunk.Output+".log",
		)
	}

	args = append(args, f.extraArgs...)

	if pass < f.passes {
		args = append(args, "-f", "null", os.DevNull)
	} else {
		args = append(args, chunk.Output)
	}

	return args
}

// Encode runs one encode pass, blocking until the encoder process exits.
//
// On failure the exit status and combined stdout/stderr are wrapped in a
// *broker.EncodeError so the retry loop can surface them.
func (f *FFmpeg) Encode(chunk *models.Chunk, pass, workerID int) error {
	cmd := exec.Command("ffmpeg", f.BuildArgs(chunk, pass)...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		status := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitCode()
		}
		return &broker.EncodeError{Status: status, Output: string(output)}
	}

	return nil
}
