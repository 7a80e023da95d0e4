// Package ipc carries one JSON request/response per unix-socket connection
// between the shutter CLI and the running daemon.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxMessageBytes bounds one newline-terminated request or response.
const MaxMessageBytes = 1 << 20

var errMessageTooLarge = fmt.Errorf("message exceeds %d bytes", MaxMessageBytes)

// Request names a daemon command and its positional arguments.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response reports the command outcome. Data carries command-specific JSON.
type Response struct {
	OK      bool            `json:"ok"`
	State   string          `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func decodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.ToLower(strings.TrimSpace(req.Command))
	if req.Command == "" {
		return Request{}, errors.New("missing command")
	}
	return req, nil
}

// readLine reads one message line, refusing anything past MaxMessageBytes.
func readLine(r io.Reader) ([]byte, error) {
	reader := bufio.NewReader(io.LimitReader(r, MaxMessageBytes+1))
	line, err := reader.ReadBytes('\n')
	if len(line) > MaxMessageBytes {
		return nil, errMessageTooLarge
	}
	if err != nil {
		return nil, err
	}
	return line, nil
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(data) >= MaxMessageBytes {
		return errMessageTooLarge
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
