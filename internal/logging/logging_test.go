package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	SetLevelFromString("debug")
	assert.Equal(t, slog.LevelDebug, Level())

	SetLevelFromString("WARNING")
	assert.Equal(t, slog.LevelWarn, Level())

	SetLevelFromString("nonsense")
	assert.Equal(t, slog.LevelWarn, Level(), "unknown level must not change anything")
}

func TestInitStructuredJSON(t *testing.T) {
	prev := Op()
	defer SetLogger(prev)
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	InitStructuredTo(&buf, "json", "info")
	For("entity").Info("fetch complete", "store", "projects")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "entity", line["component"])
	assert.Equal(t, "projects", line["store"])
}

func TestOpWithTrace(t *testing.T) {
	prev := Op()
	defer SetLogger(prev)

	var buf bytes.Buffer
	InitStructuredTo(&buf, "text", "info")
	OpWithTrace("abc", "def").Info("hello")
	assert.Contains(t, buf.String(), "trace_id=abc")
	assert.Contains(t, buf.String(), "span_id=def")

	assert.Same(t, Op(), OpWithTrace("", "def"))
}

func TestForTrace(t *testing.T) {
	prev := Op()
	defer SetLogger(prev)

	var buf bytes.Buffer
	InitStructuredTo(&buf, "text", "info")
	ForTrace("optimistic", "abc", "").Warn("rolled back")
	assert.Contains(t, buf.String(), "trace_id=abc")
	assert.Contains(t, buf.String(), "component=optimistic")
	assert.NotContains(t, buf.String(), "span_id")
}

func TestAuditLog_DisabledByDefault(t *testing.T) {
	a := &AuditLog{now: Audit().now}
	a.Record(MutationRecord{Store: "projects", Kind: "create"})
}

func TestAuditLog_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	a := NewAuditLog(&console)

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	require.NoError(t, a.SetOutput(path))

	a.Record(MutationRecord{Store: "projects", Kind: "create", TargetID: "p1", Committed: true, DurationMs: 12})
	a.Record(MutationRecord{Store: "skills", Kind: "delete", Error: "network failure"})
	a.Close()

	out := console.String()
	assert.Contains(t, out, "✓ projects.create p1 12ms")
	assert.Contains(t, out, "✗ rolled back skills.delete")
	assert.Contains(t, out, "error: network failure")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []MutationRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r MutationRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 2)
	assert.True(t, records[0].Committed)
	assert.False(t, records[0].Timestamp.IsZero())
	assert.True(t, strings.HasPrefix(records[1].Error, "network"))
}
