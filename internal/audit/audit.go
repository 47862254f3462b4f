// Package audit appends one JSON line per gate outcome to a private file in
// the state directory.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashwch/syntaxpilot/internal/appdirs"
	"github.com/ashwch/syntaxpilot/internal/safety"
	"github.com/google/uuid"
)

const FileName = "audit.jsonl"

const maxCommandLength = 8192

type Record struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Query       string  `json:"query"`
	Command     string  `json:"command,omitempty"`
	Program     string  `json:"program,omitempty"`
	Source      string  `json:"source,omitempty"`
	Confidence  float32 `json:"confidence,omitempty"`
	State       string  `json:"state"`
	ExitCode    int     `json:"exit_code"`
	Interrupted bool    `json:"interrupted,omitempty"`
	Error       string  `json:"error,omitempty"`
}

type Recorder struct {
	path  string
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

func NewRecorder(path string) *Recorder {
	return &Recorder{
		path:  path,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// DefaultRecorder writes to <state dir>/audit.jsonl, creating the directory
// with private permissions.
func DefaultRecorder() (*Recorder, error) {
	if _, err := appdirs.EnsureStateDir(); err != nil {
		return nil, err
	}
	path, err := appdirs.StateFilePath(FileName)
	if err != nil {
		return nil, err
	}
	return NewRecorder(path), nil
}

func (r *Recorder) Path() string {
	return r.path
}

// Record fills in ID and Timestamp, redacts the text fields and appends the
// record. The returned copy is what was written.
func (r *Recorder) Record(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = r.newID()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = r.now().UTC().Format(time.RFC3339)
	}
	if strings.TrimSpace(rec.State) == "" {
		return rec, errors.New("audit record needs a state")
	}
	rec.Query = safety.RedactText(strings.TrimSpace(rec.Query))
	rec.Command = safety.RedactText(rec.Command)
	if len(rec.Command) > maxCommandLength {
		rec.Command = rec.Command[:maxCommandLength]
	}
	if rec.Program == "" && rec.Command != "" {
		rec.Program = filepath.Base(primaryCommandToken(strings.Fields(rec.Command)))
	}
	rec.Error = safety.RedactText(rec.Error)

	encoded, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("could not serialize audit record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return rec, fmt.Errorf("could not open audit file: %w", err)
	}
	defer f.Close()
	if err := os.Chmod(r.path, 0o600); err != nil {
		return rec, fmt.Errorf("could not secure audit file permissions: %w", err)
	}
	if _, err := f.Write(append(encoded, '\n')); err != nil {
		return rec, fmt.Errorf("could not write audit record: %w", err)
	}
	return rec, nil
}

// Tail returns up to n of the most recent records, oldest first. A missing
// file yields no records. Lines that do not decode are skipped.
func Tail(path string, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read audit file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	records := make([]Record, 0, n)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if len(records) == n {
			records = append(records[:0], records[1:]...)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not scan audit file: %w", err)
	}
	return records, nil
}

// primaryCommandToken skips env assignments and wrappers such as sudo to
// find the program a command line actually runs.
func primaryCommandToken(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	idx := 0
	for idx < len(fields) {
		token := fields[idx]
		if isEnvAssignmentToken(token) {
			idx++
			continue
		}
		switch strings.ToLower(filepath.Base(token)) {
		case "env":
			idx = skipFlags(fields, idx+1, true)
		case "sudo", "command", "time", "nohup", "builtin", "exec":
			idx = skipFlags(fields, idx+1, false)
		default:
			return token
		}
	}
	return fields[0]
}

func skipFlags(fields []string, idx int, allowAssignments bool) int {
	for idx < len(fields) {
		next := fields[idx]
		if strings.HasPrefix(next, "-") || (allowAssignments && isEnvAssignmentToken(next)) {
			idx++
			continue
		}
		break
	}
	return idx
}

func isEnvAssignmentToken(token string) bool {
	if strings.HasPrefix(token, "-") {
		return false
	}
	eq := strings.IndexRune(token, '=')
	if eq <= 0 {
		return false
	}
	return strings.IndexAny(token[:eq], "/\\") == -1
}
