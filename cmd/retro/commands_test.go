package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDoctorReportsReady(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "== Readiness ==")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "user 42")
	requireContains(t, out, "ready to record")
}

func TestDoctorFailsWithoutFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Capture.FFmpegBinary = filepath.Join(env.baseDir, "missing", "ffmpeg")
	env.writeConfig(t)

	out, _, err := runCLI(t, env, "", "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "required check(s) failed")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "", "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Config file present: yes")
	requireContains(t, out, "/features/retrospectives/upload")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, env, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, env, "", "config", "validate"); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out, _, err := runCLI(t, nil, "", "--config", filepath.Join(t.TempDir(), "broken", "x.toml"), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "retro dev")
}

func TestDevicesListRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "", "devices", "list"); err != nil {
		t.Fatalf("devices list: %v", err)
	}
}

func TestLogsShowsRecordingSession(t *testing.T) {
	env := setupCLITestEnv(t)
	if out, _, err := runCLI(t, env, "start\nstop\nquit\n", "record"); err != nil {
		t.Fatalf("record: %v\n%s", err, out)
	}

	out, _, err := runCLI(t, env, "", "logs", "-n", "200")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "transition applied")
	requireContains(t, out, "capture device released")
}
