package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSave_CreatesDirAndUniqueFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio_generations")
	d := NewDisk(dir)
	payload := []byte("ID3\x03fake-mp3")

	first, err := d.Save(payload, "audio/mpeg")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := d.Save(payload, "audio/mpeg")
	if err != nil {
		t.Fatalf("Save (second): %v", err)
	}

	if first.Filename == second.Filename {
		t.Fatalf("filenames collide: %s", first.Filename)
	}
	for _, p := range []string{first.Filename, second.Filename} {
		if !ValidFilename(p) {
			t.Errorf("filename %q does not match music_<32hex>.mp3", p)
		}
	}

	onDisk, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(onDisk, payload) || !bytes.Equal(first.Bytes, payload) {
		t.Error("persisted bytes differ from payload")
	}
	if first.DownloadName != "generated_music.mp3" {
		t.Errorf("download name = %q", first.DownloadName)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected 2 files, got %d", len(entries))
	}
}

func TestSave_ExistingDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewDisk(dir).Save([]byte("a"), "audio/mpeg"); err != nil {
		t.Fatalf("Save into existing dir: %v", err)
	}
}

func TestOpen(t *testing.T) {
	d := NewDisk(t.TempDir())
	saved, err := d.Save([]byte("music"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	r, info, err := d.Open(saved.Filename)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "music" || info.Size() != 5 {
		t.Errorf("got %q size %d", got, info.Size())
	}

	tests := []string{"../etc/passwd", "music_zz.mp3", NewFilename()}
	for _, name := range tests {
		if _, _, err := d.Open(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q) = %v, want ErrNotFound", name, err)
		}
	}
}
