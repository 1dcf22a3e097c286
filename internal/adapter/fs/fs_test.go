package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWalker_IncludeExclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "a.md"), "a")
	writeFile(t, filepath.Join(dir, "image.png"), "x")
	writeFile(t, filepath.Join(dir, "nested", "c.txt"), "c")
	writeFile(t, filepath.Join(dir, ".git", "d.txt"), "d")

	w := NewWalker([]string{"**/*.txt", "**/*.md"}, []string{".git/**"})
	files, err := w.Walk(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f.Path)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.md", "b.txt", "nested/c.txt"}, names)
}

func TestDirectorySource_Documents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "syllabus.txt"), "Course syllabus")
	writeFile(t, filepath.Join(dir, "lab4.md"), "# Lab 4")
	writeFile(t, filepath.Join(dir, "notes.bin"), "ignored")

	src := NewDirectorySource(dir, nil, nil)
	docs, err := src.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "lab4.md", docs[0].ID)
	assert.Equal(t, "# Lab 4", docs[0].Text)
	assert.Equal(t, "syllabus.txt", docs[1].ID)
}

func TestDirectorySource_DuplicateBaseNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "readme.md"), "first")
	writeFile(t, filepath.Join(dir, "b", "readme.md"), "second")

	docs, err := NewDirectorySource(dir, nil, nil).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "first", docs[0].Text)
}

func TestDirectorySource_MissingRoot(t *testing.T) {
	_, err := NewDirectorySource(filepath.Join(t.TempDir(), "missing"), nil, nil).Documents(context.Background())
	assert.Error(t, err)
}

func TestWatcher_EmitsMatchingFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, NewWalker([]string{"**/*.txt"}, nil), nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := w.Watch(ctx)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "skip.json"), []byte("{}"), 0644)
		os.WriteFile(filepath.Join(dir, "new.txt"), []byte("hi"), 0644)
	}()

	select {
	case ev := <-events:
		assert.Equal(t, "new.txt", filepath.Base(ev.Path))
		assert.Equal(t, FileCreated, ev.Op)
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}
}

func TestWatcher_MergesBurstIntoOneEvent(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, NewWalker([]string{"**/*.txt"}, nil), nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := w.Watch(ctx)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		path := filepath.Join(dir, "notes.txt")
		f, err := os.Create(path)
		if err != nil {
			return
		}
		for _, line := range []string{"first\n", "second\n", "third\n"} {
			f.WriteString(line)
			f.Sync()
			time.Sleep(10 * time.Millisecond)
		}
		f.Close()
	}()

	select {
	case ev := <-events:
		assert.Equal(t, "notes.txt", filepath.Base(ev.Path))
		assert.Equal(t, FileCreated, ev.Op)
		data, err := os.ReadFile(ev.Path)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\nthird\n", string(data))
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %+v", ev)
	case <-time.After(4 * defaultDebounce):
	}
}
