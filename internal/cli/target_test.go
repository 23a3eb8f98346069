package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockwatch/internal/models"
	"stockwatch/internal/store"
)

func newTestApp() *App {
	return &App{
		Logger: zerolog.Nop(),
		Repo:   store.NewMemoryStore(),
	}
}

func runTargetCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	cmd := newTargetCmd(app)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTargetAdd(t *testing.T) {
	app := newTestApp()

	out, err := runTargetCmd(t, app, "add", "aapl", "150.00", "--user", "42")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(out, "AAPL") {
		t.Errorf("output %q should mention AAPL", out)
	}

	targets, _ := app.Repo.List(context.Background(), "42")
	if len(targets) != 1 {
		t.Fatalf("len(targets) = %d, want 1", len(targets))
	}
	if targets[0].Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", targets[0].Symbol)
	}
	if targets[0].Direction != models.TriggerBelow {
		t.Errorf("direction = %q, want below by default", targets[0].Direction)
	}
}

func TestTargetAddAboveDirection(t *testing.T) {
	app := newTestApp()

	_, err := runTargetCmd(t, app, "add", "NVDA", "900", "--direction", "above", "--user", "42")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	targets, _ := app.Repo.List(context.Background(), "42")
	if targets[0].Direction != models.TriggerAbove {
		t.Errorf("direction = %q, want above", targets[0].Direction)
	}
	if !targets[0].Threshold.Equal(decimal.NewFromInt(900)) {
		t.Errorf("threshold = %s, want 900", targets[0].Threshold)
	}
}

func TestTargetAddRejectsBadInput(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name string
		args []string
	}{
		{"missing user", []string{"add", "AAPL", "150"}},
		{"bad price", []string{"add", "AAPL", "cheap", "--user", "42"}},
		{"zero price", []string{"add", "AAPL", "0", "--user", "42"}},
		{"bad direction", []string{"add", "AAPL", "150", "--direction", "sideways", "--user", "42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runTargetCmd(t, app, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTargetList(t *testing.T) {
	app := newTestApp()

	runTargetCmd(t, app, "add", "AAPL", "150", "--user", "42")
	runTargetCmd(t, app, "add", "NVDA", "900", "--direction", "above", "--user", "42")

	out, err := runTargetCmd(t, app, "list", "--user", "42")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"AAPL", "NVDA", "150.00", "900.00", "pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestTargetRemove(t *testing.T) {
	app := newTestApp()

	runTargetCmd(t, app, "add", "AAPL", "150", "--user", "42")
	if _, err := runTargetCmd(t, app, "remove", "aapl", "--user", "42"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	targets, _ := app.Repo.List(context.Background(), "42")
	if len(targets) != 0 {
		t.Fatalf("len(targets) = %d, want 0 after remove", len(targets))
	}
}

func TestTargetRemoveMissingIsNotAnError(t *testing.T) {
	app := newTestApp()

	out, err := runTargetCmd(t, app, "remove", "MSFT", "--user", "42")
	if err != nil {
		t.Fatalf("remove of missing target should not error: %v", err)
	}
	if !strings.Contains(out, "MSFT") {
		t.Errorf("output %q should mention MSFT", out)
	}
}
