package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jetoze/attribut/internal/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionShort(t *testing.T) {
	out, err := runCLI(t, "version", "--short")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version --short = %q, want %q", out, version)
	}
}

func TestVersionFull(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	for _, want := range []string{"attribut  " + version, "commit", "built", runtime.Version()} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := runCLI(t, "version", "extra"); err == nil {
		t.Error("expected error for unexpected argument")
	}
}

func TestBenchCommand(t *testing.T) {
	out, err := runCLI(t, "bench", "--writers=2", "--iterations=64", "--listeners=1", "--copy-policy=reference")
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	for _, want := range []string{"bench finished", "Copy policy:    reference", "Writes:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBenchCommandRejectsInvalidFlags(t *testing.T) {
	if _, err := runCLI(t, "bench", "--writers=0"); err == nil {
		t.Error("expected error for zero writers")
	}
	if _, err := runCLI(t, "bench", "--copy-policy=alias"); err == nil {
		t.Error("expected error for unknown copy policy")
	}
}

func TestBenchCommandReadsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	yaml := "bench:\n  writers: 1\n  iterations: 8\n  copyPolicy: copy\ntracing:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "bench", "--config", path)
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	if !strings.Contains(out, "Copy policy:    copy") {
		t.Errorf("config copy policy not applied:\n%s", out)
	}
}

func TestRunBenchCounts(t *testing.T) {
	cfg := config.New()
	cfg.Bench.Writers = 4
	cfg.Bench.Iterations = 64
	cfg.Bench.Listeners = 3
	cfg.Bench.ListSize = 4

	s, err := newStack(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	if err != nil {
		t.Fatalf("newStack: %v", err)
	}
	res, err := runBench(cfg, s)
	if err != nil {
		t.Fatalf("runBench: %v", err)
	}

	// Per writer and 64 iterations: 64 updates, 12 sets, 3 sorts, 1 clear.
	wantWrites := uint64(4 * (64 + 12 + 3 + 1))
	if res.Writes != wantWrites {
		t.Errorf("Writes = %d, want %d", res.Writes, wantWrites)
	}
	// Every update increments, every list write copies or forces: all notify.
	if res.Notifications != wantWrites {
		t.Errorf("Notifications = %d, want %d", res.Notifications, wantWrites)
	}
	if res.ListenerCalls != 3*wantWrites {
		t.Errorf("ListenerCalls = %d, want %d", res.ListenerCalls, 3*wantWrites)
	}
	if res.WritesPerSecond() <= 0 {
		t.Errorf("WritesPerSecond() = %v, want > 0", res.WritesPerSecond())
	}
}

func TestDemoTick(t *testing.T) {
	cfg := config.New()
	s, err := newStack(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	if err != nil {
		t.Fatalf("newStack: %v", err)
	}
	d, err := newDemo(s.registry)
	if err != nil {
		t.Fatalf("newDemo: %v", err)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		if err := d.tick(now.Add(time.Duration(i) * time.Second)); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if d.ticks.Get() != 4 || d.readings.Len() != 4 {
		t.Errorf("after 4 ticks: ticks=%d readings=%d, want 4 and 4", d.ticks.Get(), d.readings.Len())
	}

	d.tick(now.Add(5 * time.Second))
	got := d.readings.Get()
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("readings not sorted after 5th tick: %v", got)
		}
	}

	for i := 6; i <= 10; i++ {
		d.tick(now.Add(time.Duration(i) * time.Second))
	}
	if !d.readings.IsEmpty() {
		t.Errorf("readings not cleared after 10th tick: %v", d.readings.Get())
	}
	if d.clock.Get() != "2024-01-01T00:00:10Z" {
		t.Errorf("clock = %q", d.clock.Get())
	}
}

func TestRunServe(t *testing.T) {
	cfg := config.New()
	cfg.Serve.Tick = 10 * time.Millisecond

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cfg, ln, slog.New(slog.NewTextHandler(io.Discard, nil)), newRootCmd())
	}()

	url := "http://" + ln.Addr().String() + "/properties"
	var values map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			values = nil
			_ = json.NewDecoder(resp.Body).Decode(&values)
			resp.Body.Close()
			if ticks, ok := values["ticks"].(float64); ok && ticks > 0 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("demo never ticked; last values %v, err %v", values, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	for _, name := range []string{"clock", "ticks", "readings"} {
		if _, ok := values[name]; !ok {
			t.Errorf("/properties missing %s: %v", name, values)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not stop after cancel")
	}
}
