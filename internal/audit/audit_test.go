package audit

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashwch/syntaxpilot/internal/appdirs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r := NewRecorder(filepath.Join(t.TempDir(), FileName))
	r.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRecordAppendsRedactedJSONLines(t *testing.T) {
	r := newTestRecorder(t)

	written, err := r.Record(Record{
		Query:      "deploy with my token",
		Command:    "API_TOKEN=abc123 sudo -E ./deploy.sh --password hunter2",
		Source:     "retrieval",
		Confidence: 0.81,
		State:      "done",
		ExitCode:   0,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, written.ID)
	assert.Equal(t, "2026-10-19T12:00:00Z", written.Timestamp)
	assert.Equal(t, "deploy.sh", written.Program)

	_, err = r.Record(Record{Query: "nextjs", State: "no_match", ExitCode: -1})
	require.NoError(t, err)

	raw, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "abc123")
	assert.NotContains(t, string(raw), "hunter2")
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))

	records, err := Tail(r.Path(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "done", records[0].State)
	assert.Equal(t, "no_match", records[1].State)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestRecordUsesPrivatePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix permissions")
	}
	r := newTestRecorder(t)
	_, err := r.Record(Record{Query: "q", State: "rejected"})
	require.NoError(t, err)

	info, err := os.Stat(r.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRecordRequiresState(t *testing.T) {
	_, err := newTestRecorder(t).Record(Record{Query: "q"})
	assert.Error(t, err)
}

func TestRecordTruncatesHugeCommands(t *testing.T) {
	r := newTestRecorder(t)
	written, err := r.Record(Record{Command: "echo " + strings.Repeat("x", 3*maxCommandLength), State: "done"})
	require.NoError(t, err)
	assert.Len(t, written.Command, maxCommandLength)
}

func TestRecordConcurrentWritersProduceWholeLines(t *testing.T) {
	r := newTestRecorder(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Record(Record{Query: "q", Command: "ls -la", State: "done"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := Tail(r.Path(), 100)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestTailKeepsNewestAndSkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `{"id":"1","state":"done"}
not json
{"id":"2","state":"rejected"}

{"id":"3","state":"no_match"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	records, err := Tail(path, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[0].ID)
	assert.Equal(t, "3", records[1].ID)

	missing, err := Tail(filepath.Join(t.TempDir(), "nope.jsonl"), 5)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestDefaultRecorderUsesStateDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(appdirs.StateDirEnv, dir)

	r, err := DefaultRecorder()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), r.Path())
}

func TestPrimaryCommandToken(t *testing.T) {
	cases := map[string]string{
		"npx create-next-app":                "npx",
		"FOO=1 BAR=2 make build":             "make",
		"env -i PATH=/bin ls":                "ls",
		"sudo -E /usr/bin/systemctl restart": "/usr/bin/systemctl",
		"time nohup ./run.sh":                "./run.sh",
	}
	for input, want := range cases {
		assert.Equal(t, want, primaryCommandToken(strings.Fields(input)), input)
	}
}
