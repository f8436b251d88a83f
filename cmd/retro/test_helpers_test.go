package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/UtsahaJoshi/The-New-Hires/internal/config"
	"github.com/UtsahaJoshi/The-New-Hires/internal/testsupport"
)

// fakeFFmpeg writes a header, then a trailer once "q" arrives on stdin.
const fakeFFmpeg = `#!/bin/sh
printf 'HEADER'
read -r cmd
printf 'TRAILER'
exit 0
`

type upload struct {
	userID   string
	fileName string
	data     []byte
}

type uploadServer struct {
	mu       sync.Mutex
	failNext int
	attempts int
	uploads  []upload
}

func (s *uploadServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failNext > 0 {
		s.failNext--
		http.Error(w, "storage offline", http.StatusBadGateway)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.uploads = append(s.uploads, upload{
		userID:   r.URL.Query().Get("user_id"),
		fileName: header.Filename,
		data:     data,
	})
	w.WriteHeader(http.StatusCreated)
}

func (s *uploadServer) snapshot() (int, []upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, append([]upload(nil), s.uploads...)
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     *uploadServer
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("RETRO_API_TOKEN", "")
	t.Setenv("RETRO_BASE_URL", "")
	t.Setenv("RETRO_SESSION_FILE", "")

	uploads := &uploadServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/features/retrospectives/upload", uploads.handle)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithVideoNode(),
		testsupport.WithFFmpegScript(fakeFFmpeg),
		testsupport.WithBaseURL(srv.URL),
		testsupport.WithSessionUser("42"),
	)

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(homeDir, "retro.toml"),
		server:     uploads,
		baseDir:    testsupport.BaseDir(cfg),
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
