package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalStorageProvider_SaveOpenDelete(t *testing.T) {
	provider, err := NewLocalStorageProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorageProvider() error = %v", err)
	}
	ctx := context.Background()

	key, err := provider.Save(ctx, FolderSpeakingResponses, &File{Name: "Take1.WEBM", Reader: strings.NewReader("audio")})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(key, FolderSpeakingResponses+"/") || !strings.HasSuffix(key, ".webm") {
		t.Errorf("Save() key = %q", key)
	}

	rc, err := provider.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "audio" {
		t.Errorf("Open() content = %q", data)
	}

	if err := provider.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := provider.Open(ctx, key); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Open() after delete error = %v, want ErrFileNotFound", err)
	}
	if err := provider.Delete(ctx, key); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("second Delete() error = %v, want ErrFileNotFound", err)
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"speaking_responses/a.webm", "speaking_responses/a.webm", false},
		{"/listening_audios/b.mp3", "listening_audios/b.mp3", false},
		{"a/../b.mp3", "b.mp3", false},
		{"../etc/passwd", "", true},
		{"..", "", true},
		{"", "", true},
		{"a\\..\\b", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CleanKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeleteAll_IgnoresMissingFiles(t *testing.T) {
	provider, err := NewLocalStorageProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorageProvider() error = %v", err)
	}

	failed := DeleteAll(context.Background(), provider, []string{"", "missing/a.mp3", "../bad"})
	if len(failed) != 1 || failed[0] != "../bad" {
		t.Errorf("DeleteAll() failed = %v, want [../bad]", failed)
	}
}
