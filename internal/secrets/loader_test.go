package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	t.Setenv("TALENT_MATCHER_TEST_SECRET", " from-env ")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr bool
	}{
		{name: "file wins", src: Source{File: keyFile, Value: "inline", Env: "TALENT_MATCHER_TEST_SECRET"}, want: "from-file"},
		{name: "inline before env", src: Source{Value: " inline ", Env: "TALENT_MATCHER_TEST_SECRET"}, want: "inline"},
		{name: "env fallback", src: Source{Env: "TALENT_MATCHER_TEST_SECRET"}, want: "from-env"},
		{name: "optional and unset", src: Source{Optional: true}, want: ""},
		{name: "required and unset", src: Source{Name: "api key"}, wantErr: true},
		{name: "missing file", src: Source{File: filepath.Join(dir, "nope")}, wantErr: true},
		{name: "empty file", src: Source{File: emptyFile, Optional: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
