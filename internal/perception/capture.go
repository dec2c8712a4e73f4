// Package perception turns the physical screen into a frame that is safe to upload.
package perception

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/frame"
)

// DefaultCaptureTimeout bounds one invocation of the capture command.
const DefaultCaptureTimeout = 10 * time.Second

// DefaultCaptureCommand grabs the X11 root window as PNG on stdout (ImageMagick).
var DefaultCaptureCommand = []string{"import", "-window", "root", "png:-"}

// ErrNoFrames is returned by a replay capturer whose directory has no images.
var ErrNoFrames = errors.New("no replay frames found")

// Capturer grabs one frame of the given display.
type Capturer interface {
	Capture(ctx context.Context, display string) (frame.Frame, error)
}

// runFunc executes a command and returns its stdout. Swapped in tests.
type runFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// CommandCapturer runs an external screen grabber that writes an image to stdout.
type CommandCapturer struct {
	command []string
	timeout time.Duration
	logger  *zap.Logger
	run     runFunc
}

var _ Capturer = (*CommandCapturer)(nil)

// NewCommandCapturer returns a capturer for command, falling back to DefaultCaptureCommand.
func NewCommandCapturer(command []string, timeout time.Duration, logger *zap.Logger) *CommandCapturer {
	if len(command) == 0 {
		command = DefaultCaptureCommand
	}
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	return &CommandCapturer{
		command: command,
		timeout: timeout,
		logger:  logger.Named("capture"),
		run:     execRun,
	}
}

func (c *CommandCapturer) Capture(ctx context.Context, display string) (frame.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var env []string
	if display != "" {
		env = []string{"DISPLAY=" + display}
	}
	start := time.Now()
	out, err := c.run(ctx, env, c.command[0], c.command[1:]...)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("capturing display %q: %w", display, err)
	}
	f, err := frame.Decode(bytes.NewReader(out))
	if err != nil {
		return frame.Frame{}, fmt.Errorf("decoding capture output: %w", err)
	}
	c.logger.Debug("Captured screen.",
		zap.String("display", display),
		zap.Int("width", f.Width()),
		zap.Int("height", f.Height()),
		zap.Duration("took", time.Since(start)))
	return f, nil
}

// FileCapturer replays the images of a directory in name order. Once the
// last image is reached it keeps returning it.
type FileCapturer struct {
	mu     sync.Mutex
	files  []string
	next   int
	logger *zap.Logger
}

var _ Capturer = (*FileCapturer)(nil)

var replayExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// NewFileCapturer lists the PNG and JPEG files in dir.
func NewFileCapturer(dir string, logger *zap.Logger) (*FileCapturer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading replay directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !replayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}
	sort.Strings(files)
	return &FileCapturer{files: files, logger: logger.Named("replay")}, nil
}

func (c *FileCapturer) Capture(ctx context.Context, _ string) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	c.mu.Lock()
	path := c.files[c.next]
	if c.next < len(c.files)-1 {
		c.next++
	}
	c.mu.Unlock()

	fh, err := os.Open(path)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("opening replay frame: %w", err)
	}
	defer fh.Close()

	f, err := frame.Decode(fh)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	c.logger.Debug("Replayed frame.", zap.String("file", path))
	return f, nil
}
