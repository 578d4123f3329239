// Package training owns the lifecycle of the external training worker
// process: spawning it, draining its output in real time, and turning its
// exit into a model path or a descriptive failure.
package training

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	model "github.com/aquametrics/shrimpd/internal/domain/model"
	progress "github.com/aquametrics/shrimpd/internal/domain/progress"
	"github.com/aquametrics/shrimpd/pkg/logger"
	"github.com/aquametrics/shrimpd/pkg/metrics"
)

// Scanner buffer sizing; trainer progress bars can emit long lines.
const (
	scanBufSize = 256 * 1024
)

// Upper bound on pipe drain after the worker dies. Without it Wait blocks
// for as long as any leaked descendant holds the write end of the pipe.
const waitDelay = 3 * time.Second

// Validator checks a produced model artifact before the run is accepted.
type Validator interface {
	Validate(ctx context.Context, path string) error
}

// EventFunc receives parsed progress events in real time.
type EventFunc func(model.ProgressEvent)

// Option applies a configuration option to the Launcher.
type Option func(*Launcher)

// WithLogger sets a custom logger for the launcher.
func WithLogger(log logger.Logger) Option {
	return func(l *Launcher) {
		if log != nil {
			l.log = log
		}
	}
}

// Launcher spawns at most one training worker process at a time.
// The worker runs as a separate OS process so a crash inside the training
// library cannot take down the serving process.
type Launcher struct {
	command   string
	outputDir string
	validator Validator
	log       logger.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewLauncher creates a launcher for the given trainer command. Produced
// artifacts are written under outputDir and checked by validator.
func NewLauncher(command, outputDir string, validator Validator, opts ...Option) *Launcher {
	l := &Launcher{
		command:   command,
		outputDir: outputDir,
		validator: validator,
		log:       logger.Get().Named("launcher"),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Running reports whether a worker process is currently alive.
func (l *Launcher) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd != nil
}

// Launch starts the worker and blocks until it exits, feeding every output
// line through parser and handing the resulting events to onEvent. On
// success it returns the validated model artifact path.
func (l *Launcher) Launch(ctx context.Context, descriptorPath string, cfg model.TrainingConfig, parser progress.Parser, onEvent EventFunc) (string, error) {
	pr, pw := io.Pipe()

	cmd := exec.CommandContext(ctx, l.command,
		"--data", descriptorPath,
		"--model", cfg.ModelVariant,
		"--epochs", strconv.Itoa(cfg.Epochs),
		"--batch", strconv.Itoa(cfg.BatchSize),
		"--imgsz", strconv.Itoa(cfg.ImageSize),
		"--lr", strconv.FormatFloat(cfg.LearningRate, 'g', -1, 64),
		"--output", l.outputDir,
	)
	cmd.Stdout = pw
	cmd.Stderr = pw

	// The worker gets its own process group so Stop can take down
	// shell-spawned descendants (dataloader workers etc.) together with the
	// worker itself. A surviving descendant would keep the output pipe open
	// and park Wait forever; WaitDelay caps that.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	l.mu.Lock()
	if l.cmd != nil {
		l.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if err := cmd.Start(); err != nil {
		l.mu.Unlock()
		metrics.RecordErrorByComponent("launcher", "spawn_failed")
		return "", fmt.Errorf("starting trainer %q: %w", l.command, err)
	}
	l.cmd = cmd
	l.mu.Unlock()

	l.log.Info(ctx, "trainer process started",
		logger.String("command", l.command),
		logger.Int("pid", cmd.Process.Pid),
	)

	// Close the write side once the process is done so the drain loop ends.
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitErr <- err
	}()

	modelPath, lastError := l.drain(ctx, pr, parser, onEvent)
	err := <-waitErr

	l.mu.Lock()
	l.cmd = nil
	l.mu.Unlock()

	return l.resolve(ctx, modelPath, lastError, err)
}

// drain reads the worker's combined output line by line. Nothing is
// buffered until completion; every line is parsed as it arrives.
func (l *Launcher) drain(ctx context.Context, r io.Reader, parser progress.Parser, onEvent EventFunc) (modelPath, lastError string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scanBufSize), scanBufSize)

	for scanner.Scan() {
		line := scanner.Text()
		events := parser.Parse(line)
		if len(events) == 0 && strings.TrimSpace(line) != "" {
			metrics.RecordParseSkippedLine()
		}
		for _, ev := range events {
			metrics.RecordProgressEvent(string(ev.Kind))

			if ev.Kind == model.EventTerminal {
				if rest, ok := strings.CutPrefix(ev.Message, progress.SuccessMarker); ok {
					modelPath = strings.TrimSpace(rest)
				} else if rest, ok := strings.CutPrefix(ev.Message, progress.ErrorMarker); ok {
					lastError = strings.TrimSpace(rest)
				}
			}

			if onEvent != nil {
				onEvent(ev)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		l.log.Warn(ctx, "trainer output drain ended early", logger.Error(err))
	}
	return modelPath, lastError
}

// resolve turns the worker's exit into a model path or the most specific
// captured failure.
func (l *Launcher) resolve(ctx context.Context, modelPath, lastError string, waitErr error) (string, error) {
	if modelPath != "" {
		if err := l.validator.Validate(ctx, modelPath); err != nil {
			metrics.RecordErrorByComponent("launcher", "artifact_invalid")
			return "", fmt.Errorf("model artifact validation failed: %w", err)
		}
		return modelPath, nil
	}

	switch {
	case lastError != "":
		metrics.RecordErrorByComponent("launcher", "worker_error")
		return "", fmt.Errorf("training failed: %s", lastError)
	case waitErr != nil:
		metrics.RecordErrorByComponent("launcher", "exit_nonzero")
		return "", fmt.Errorf("process exited with non-zero status: %w", waitErr)
	default:
		metrics.RecordErrorByComponent("launcher", "no_success_marker")
		return "", ErrNoSuccessMarker
	}
}

// Stop kills the worker's process group. Stopping releases the worker's
// resources instead of letting an abandoned run keep training in the
// background.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd == nil || l.cmd.Process == nil {
		return ErrNotRunning
	}
	// Group kill so descendants die with the worker; fall back to killing
	// the direct child if the group is already gone.
	if err := syscall.Kill(-l.cmd.Process.Pid, syscall.SIGKILL); err != nil {
		if err := l.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing trainer process: %w", err)
		}
	}
	return nil
}
