package gitsource

import (
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://github.com/owner/cards.git", want: filepath.Join("repos", "github.com", "owner", "cards")},
		{url: "https://gitlab.com/group/sub/cards", want: filepath.Join("repos", "gitlab.com", "group", "sub", "cards")},
		{url: "git@github.com:owner/cards.git", want: filepath.Join("repos", "github.com", "owner", "cards")},
		{url: "not a url", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := LocalPath("repos", tt.url)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected an error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath() returned an unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	for path, want := range map[string]bool{
		"https://github.com/owner/cards": true,
		"git@github.com:owner/cards.git": true,
		"http://git.local/owner/cards":   true,
		"./notes":                        false,
		"/home/me/cards":                 false,
	} {
		if got := IsRemote(path); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", path, got, want)
		}
	}
}
