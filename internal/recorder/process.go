package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Process is a running encoder.
type Process interface {
	// Stop asks the encoder to finish the file and exit.
	Stop() error
	// Kill terminates the encoder immediately.
	Kill() error
	// Wait blocks until the encoder exits.
	Wait() error
}

// Launcher starts encoder processes.
type Launcher interface {
	Launch(executable string, args []string) (Process, error)
}

// ExecLauncher runs the encoder as a child process with a stdin control pipe.
type ExecLauncher struct{}

// Launch starts executable without waiting for it.
func (ExecLauncher) Launch(executable string, args []string) (Process, error) {
	cmd := exec.Command(executable, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open %s stdin: %w", executable, err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", executable, err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer

	stopOnce sync.Once
	stopErr  error
}

// Stop writes ffmpeg's interactive quit key and closes stdin.
func (p *execProcess) Stop() error {
	p.stopOnce.Do(func() {
		_, err := io.WriteString(p.stdin, "q")
		closeErr := p.stdin.Close()
		p.stopErr = errors.Join(err, closeErr)
	})
	return p.stopErr
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	tail := strings.TrimSpace(p.stderr.String())
	if tail == "" {
		return err
	}
	return fmt.Errorf("%w (%s)", err, tail)
}

// tailBuffer keeps the last limit bytes written.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, _ := b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
