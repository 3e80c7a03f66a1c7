package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codearena/internal/common/mq"
)

const testConfig = `
database:
  dsn: "${TEST_ARENA_DSN}"
redis:
  addr: "127.0.0.1:6379"
kafka:
  brokers: ["${TEST_ARENA_BROKER}"]
backend:
  endpoints:
    - name: primary
      url: "http://judge0.local"
  languageIds:
    python: 92
harness:
  marker: "@@"
  maxCodeBytes: 1024
poller:
  interval: 5s
rateLimit:
  submit:
    ipMax: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppConfigExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("TEST_ARENA_DSN", "arena:pw@tcp(db:3306)/arena")
	cfg, err := loadAppConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Database.DSN != "arena:pw@tcp(db:3306)/arena" {
		t.Fatalf("dsn not expanded: %q", cfg.Database.DSN)
	}
	if cfg.Server.Addr != defaultHTTPAddr || cfg.Kafka.DispatchTopic != defaultDispatchTopic || cfg.Leaderboard.Round != defaultRound {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Harness.Marker != "@@" || cfg.Harness.MaxCodeBytes != 1024 {
		t.Fatalf("harness config not decoded: %+v", cfg.Harness)
	}
	if cfg.Backend.LanguageIDs["python"] != 92 || cfg.Backend.Endpoints[0].Name != "primary" {
		t.Fatalf("backend config not decoded: %+v", cfg.Backend)
	}
	if cfg.Poller.Interval != 5*time.Second || cfg.RateLimit.Submit.IPMax != 3 {
		t.Fatalf("unexpected poller or rate limit config: %+v %+v", cfg.Poller, cfg.RateLimit)
	}
	if cfg.Dispatch.Concurrency != cfg.Dispatch.PoolSize {
		t.Fatalf("dispatch concurrency should default to pool size")
	}
}

func TestLoadAppConfigRequiresDatabase(t *testing.T) {
	t.Setenv("TEST_ARENA_DSN", "")
	if _, err := loadAppConfig(writeConfig(t, testConfig)); err == nil {
		t.Fatalf("expected missing dsn to fail")
	}
}

func TestNewQueueFallsBackToMemory(t *testing.T) {
	t.Setenv("TEST_ARENA_DSN", "dsn")
	cfg, err := loadAppConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	queue, err := newQueue(cfg.Kafka)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer queue.Close()
	if _, ok := queue.(*mq.MemoryQueue); !ok {
		t.Fatalf("expected in-process queue for blank brokers, got %T", queue)
	}
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TEST_ARENA_FROM_FILE=file\nTEST_ARENA_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("TEST_ARENA_PRESET", "process")
	t.Setenv("TEST_ARENA_FROM_FILE", "")
	os.Unsetenv("TEST_ARENA_FROM_FILE")
	if err := loadEnvFile(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("TEST_ARENA_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("TEST_ARENA_PRESET"); got != "process" {
		t.Fatalf("process env should win, got %q", got)
	}
}
