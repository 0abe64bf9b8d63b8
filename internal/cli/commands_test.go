package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/planner"
	"github.com/roach88/wedplan/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wedplan.yaml")
	body := fmt.Sprintf("data_dir: %s\nlog:\n  level: error\nremote:\n  mode: none\n%s", filepath.Join(dir, "data"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs the root command and returns stdout.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	return resp.Data
}

func TestAddListUpdateDelete(t *testing.T) {
	testutil.PinEntityIDs(t, testutil.NewSequenceIDGenerator("t"))
	cfg := writeConfig(t, "")

	out, err := execute(t, cfg, "--format", "json", "add", "tasks", "description=Reservar fotógrafo", "priority=alta")
	require.NoError(t, err, out)
	added := decode[MutationResult](t, out)
	assert.Equal(t, MutationResult{Kind: "tasks", ID: "t-1", Op: "add", State: "local-only"}, added)

	out, err = execute(t, cfg, "--format", "json", "update", "task", "t-1", "completed=true", "category=fotografia")
	require.NoError(t, err, out)

	out, err = execute(t, cfg, "--format", "json", "list", "tasks")
	require.NoError(t, err, out)
	list := decode[ListResult](t, out)
	require.Len(t, list.Records, 1)
	assert.Equal(t, "Reservar fotógrafo", list.Records[0]["description"])
	assert.Equal(t, true, list.Records[0]["completed"])
	assert.Equal(t, "alta", list.Records[0]["priority"])

	out, err = execute(t, cfg, "list", "tasks")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Reservar fotógrafo")
	assert.Contains(t, strings.ToLower(out), "description")

	out, err = execute(t, cfg, "delete", "tasks", "t-1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ delete tasks t-1")

	out, err = execute(t, cfg, "list", "tasks")
	require.NoError(t, err, out)
	assert.Equal(t, "(empty)\n", out)
}

func TestAddRejectsMissingIdentity(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, cfg, "add", "guests", "side=novia")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_INVALID]")
}

func TestCommandArgumentErrors(t *testing.T) {
	cfg := writeConfig(t, "")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown kind", []string{"list", "gifts"}, ErrCodeArgs},
		{"bad pair", []string{"add", "tasks", "description"}, ErrCodeArgs},
		{"id field", []string{"add", "tasks", "id=x", "description=y"}, ErrCodeArgs},
		{"unknown id", []string{"update", "tasks", "nope", "completed=true"}, ErrCodeNotFound},
		{"bad rsvp", []string{"rsvp", "g1", "quizas"}, ErrCodeInvalid},
		{"no status", []string{"status", "guests", "g1", "hecho"}, ErrCodeArgs},
		{"bad target", []string{"target", "mucho"}, ErrCodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, cfg, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestPlannerShortcuts(t *testing.T) {
	testutil.PinEntityIDs(t, testutil.NewSequenceIDGenerator("e"))
	cfg := writeConfig(t, "")

	// The adds get ids e-1 to e-6 in order.
	steps := [][]string{
		{"add", "tasks", "description=Probar el menú"},
		{"add", "guests", "name=Lucía", "side=novia", "companions=1"},
		{"add", "milestones", "title=Pedida", "date=2027-03-01"},
		{"add", "venues", "name=Finca El Olivar", "price=12000"},
		{"add", "ideas", "title=Centros de mesa"},
		{"add", "budget", "concept=Catering", "estimated=8.000,50"},
		{"toggle", "e-1"},
		{"rsvp", "e-2", "confirmado"},
		{"status", "milestones", "e-3", "hecho"},
		{"status", "venues", "e-4", "reservado"},
		{"favorite", "e-5"},
		{"paid", "e-6", "--actual", "8200"},
		{"target", "20000"},
	}
	for _, args := range steps {
		out, err := execute(t, cfg, args...)
		require.NoError(t, err, "%v: %s", args, out)
	}

	out, err := execute(t, cfg, "--format", "json", "summary")
	require.NoError(t, err, out)
	s := decode[planner.Summary](t, out)

	assert.Equal(t, 1, s.Tasks.Completed)
	assert.Equal(t, 100, s.Tasks.Progress)
	assert.Equal(t, 1, s.Milestones.Done)
	assert.Equal(t, 2, s.Guests.Headcount)
	assert.Equal(t, 2, s.Guests.ByRSVP["confirmado"])
	assert.Equal(t, 1, s.Venues["reservado"])
	assert.Equal(t, 1, s.Ideas.Favorites)
	assert.InDelta(t, 20000, s.Budget.Target, 0.001)
	assert.InDelta(t, 8200, s.Budget.Committed, 0.001)
	assert.InDelta(t, 8200, s.Budget.Paid, 0.001)

	out, err = execute(t, cfg, "summary")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1/1 done (100%)")

	out, err = execute(t, cfg, "target")
	require.NoError(t, err, out)
	assert.Equal(t, "Budget target: 20000.00\n", out)
}

func TestAddNaturalDate(t *testing.T) {
	testutil.PinEntityIDs(t, testutil.NewSequenceIDGenerator("m"))
	restore := now
	now = func() time.Time { return time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = restore })

	cfg := writeConfig(t, "")
	out, err := execute(t, cfg, "add", "milestones", "title=Prueba del vestido", "date=tomorrow")
	require.NoError(t, err, out)

	out, err = execute(t, cfg, "--format", "json", "list", "milestones")
	require.NoError(t, err, out)
	list := decode[ListResult](t, out)
	require.Len(t, list.Records, 1)
	assert.Equal(t, "2026-10-18", list.Records[0]["date"])
}

func TestAttachImage(t *testing.T) {
	testutil.PinEntityIDs(t, testutil.NewSequenceIDGenerator("i"))
	cfg := writeConfig(t, "")

	_, err := execute(t, cfg, "add", "ideas", "title=Ramo")
	require.NoError(t, err)

	img := filepath.Join(t.TempDir(), "Ramo.PNG")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG"), 0o644))

	out, err := execute(t, cfg, "--format", "json", "attach", "i-1", img)
	require.NoError(t, err, out)
	res := decode[AttachResult](t, out)
	assert.True(t, strings.HasPrefix(res.URL, "file://"), res.URL)
	assert.True(t, strings.HasSuffix(res.URL, "ideas/i-1.png"), res.URL)

	out, err = execute(t, cfg, "attach", "i-9", img)
	require.Error(t, err)
	assert.Contains(t, out, "E_NOT_FOUND")
}

func TestConfigErrors(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "missing.yaml"), "list", "tasks")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E_CONFIG")
}

func TestValidateCommand(t *testing.T) {
	good := writeConfig(t, "")
	out, err := execute(t, good, "validate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "is valid")

	bad := writeConfig(t, "hub:\n  backend: postgres\n")
	out, err = execute(t, good, "--format", "json", "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "dsn")
}

func TestWatchPrintsEveryChange(t *testing.T) {
	testutil.PinEntityIDs(t, testutil.NewSequenceIDGenerator("w"))
	cfg := writeConfig(t, "")

	// Open the planner directly so the test can write while watch runs.
	env, err := loadEnv(context.Background(), &RootOptions{Format: "json", Config: cfg}, NewRootCommand())
	require.NoError(t, err)
	defer env.Close()

	buf := &syncBuffer{}
	env.formatter.Writer = buf
	coll, err := collectionFor(env.session.App, "guests")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, env.formatter, coll) }()

	require.Eventually(t, func() bool { return strings.Count(buf.String(), "\n") >= 1 }, 2*time.Second, 5*time.Millisecond)
	_, _, err = coll.Add(ctx, map[string]any{"name": "Mateo"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(buf.String(), "Mateo") }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var last ListResult
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "guests", last.Kind)
	require.Len(t, last.Records, 1)
	assert.Equal(t, "w-1", last.Records[0]["id"])
}
