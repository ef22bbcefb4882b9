package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func records(names ...string) []project.Record {
	out := make([]project.Record, len(names))
	for i, n := range names {
		out[i] = project.Record{Name: n, Investors: []project.Investor{}}
	}
	return out
}

func TestAppendProjectsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.json")
	w := NewWriter(path, zap.NewNop())

	require.NoError(t, w.AppendProjects(records("a", "b")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "{\n  \"projects\": ["))

	got, err := w.Projects()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, project.Names(got))
}

func TestAppendProjectsAssociative(t *testing.T) {
	dir := t.TempDir()
	split := NewWriter(filepath.Join(dir, "split.json"), zap.NewNop())
	whole := NewWriter(filepath.Join(dir, "whole.json"), zap.NewNop())

	a, b := records("a1", "a2"), records("b1", "b2", "b3")
	require.NoError(t, split.AppendProjects(a))
	require.NoError(t, split.AppendProjects(b))
	require.NoError(t, whole.AppendProjects(append(append([]project.Record{}, a...), b...)))

	gotSplit, err := split.Projects()
	require.NoError(t, err)
	gotWhole, err := whole.Projects()
	require.NoError(t, err)
	require.Equal(t, gotWhole, gotSplit)
	require.Equal(t, []string{"a1", "a2", "b1", "b2", "b3"}, project.Names(gotSplit))
}

func TestAppendProjectsCorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	w := NewWriter(path, zap.NewNop())
	require.NoError(t, w.AppendProjects(records("x")))

	got, err := w.Projects()
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, project.Names(got))
}

func TestAppendProjectsUnwritableDir(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing", "projects.json"), zap.NewNop())
	require.Error(t, w.AppendProjects(records("x")))
}

func TestFailureLogConcatenates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.json")
	l := NewFailureLog(path)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, l.Record(FailedPush{Timestamp: ts, Projects: records("a")}))
	require.NoError(t, l.Record(FailedPush{Timestamp: ts, Error: "boom", Projects: records("b", "c")}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	// the file is a stream of objects, not one document
	dec := json.NewDecoder(f)
	var entries []FailedPush
	for dec.More() {
		var e FailedPush
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	require.Equal(t, []string{"a"}, project.Names(entries[0].Projects))
	require.Equal(t, "boom", entries[1].Error)
	require.Equal(t, []string{"b", "c"}, project.Names(entries[1].Projects))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var arr []FailedPush
	require.Error(t, json.Unmarshal(data, &arr))
}
