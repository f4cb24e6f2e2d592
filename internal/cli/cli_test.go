package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/focal-ai/focal/internal/daemon"
	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/identity"
)

// setupCLI points every command at a fresh database.
func setupCLI(t *testing.T) (configPath string) {
	t.Helper()
	t.Setenv("FOCAL_HOME", t.TempDir())
	t.Setenv("FOCAL_DB_DIR", t.TempDir())
	t.Setenv("FOCAL_JWT_SECRET", "")
	chdir(t, t.TempDir())
	return filepath.Join(t.TempDir(), "config.toml")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// seed opens the store directly and applies fn.
func seed(t *testing.T, cfgPath string, fn func(d *daemon.Daemon)) {
	t.Helper()
	cfg, err := daemon.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	d, err := daemon.OpenStore(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer d.Close()
	fn(d)
}

func TestPersonasCmd(t *testing.T) {
	out, err := run(t, "personas")
	if err != nil {
		t.Fatalf("personas: %v", err)
	}
	for _, p := range domain.AllPersonas() {
		if !strings.Contains(out, p.Key()) {
			t.Errorf("output missing %s:\n%s", p.Key(), out)
		}
	}
}

func TestCreditsCmds(t *testing.T) {
	cfg := setupCLI(t)

	out, err := run(t, "--config", cfg, "credits", "balance", "ada@example.com")
	if err != nil || !strings.Contains(out, "0 credits") {
		t.Fatalf("balance of unknown user: %q, %v", out, err)
	}

	if _, err := run(t, "--config", cfg, "credits", "add", "ada@example.com", "5"); err == nil {
		t.Error("adding credits to an unknown user should fail")
	}

	seed(t, cfg, func(d *daemon.Daemon) {
		if _, err := d.Ledger.EnsureUser(context.Background(), domain.Identity{Email: "ada@example.com"}); err != nil {
			t.Fatalf("ensure user: %v", err)
		}
	})

	out, err = run(t, "--config", cfg, "credits", "add", "ada@example.com", "5", "--reason", "Promo")
	if err != nil || !strings.Contains(out, "balance 15") {
		t.Fatalf("add: %q, %v", out, err)
	}
	if _, err := run(t, "--config", cfg, "credits", "add", "ada@example.com", "-3"); err == nil {
		t.Error("negative amount should fail")
	}

	out, _ = run(t, "--config", cfg, "credits", "balance", "ada@example.com")
	if !strings.Contains(out, "15 credits") {
		t.Errorf("balance: %q", out)
	}

	out, _ = run(t, "--config", cfg, "credits", "transactions", "ada@example.com", "--limit", "10")
	for _, want := range []string{"initial", "addition", "+5", "Promo"} {
		if !strings.Contains(out, want) {
			t.Errorf("transactions missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "--config", cfg, "db", "audit", "ada@example.com")
	if err != nil || !strings.Contains(out, "matches") {
		t.Errorf("audit: %q, %v", out, err)
	}
}

func TestHistoryAndIdeaCmds(t *testing.T) {
	cfg := setupCLI(t)

	out, err := run(t, "--config", cfg, "history", "--limit", "10", "--user", "")
	if err != nil || !strings.Contains(out, "No ideas yet.") {
		t.Fatalf("empty history: %q, %v", out, err)
	}

	var ideaID string
	seed(t, cfg, func(d *daemon.Daemon) {
		ctx := context.Background()
		idea := &domain.Idea{Title: "Recipe planner", Description: "Recipe planner", UserID: "ada@example.com"}
		if err := d.DB.SaveIdea(ctx, idea); err != nil {
			t.Fatalf("save idea: %v", err)
		}
		ideaID = idea.ID
		turns := []domain.DebateTurn{{Persona: domain.PersonaEngineer, Agent: "Engineer", Round: 1, Response: "Use a queue."}}
		if err := d.DB.SaveDebateEntries(ctx, idea.ID, turns); err != nil {
			t.Fatalf("save debate: %v", err)
		}
	})

	out, _ = run(t, "--config", cfg, "history", "--limit", "10", "--user", "ada@example.com")
	if !strings.Contains(out, "Recipe planner") || !strings.Contains(out, ideaID) {
		t.Errorf("history:\n%s", out)
	}
	out, _ = run(t, "--config", cfg, "history", "--limit", "10", "--user", "bob@example.com")
	if !strings.Contains(out, "No ideas yet.") {
		t.Errorf("scoped history should be empty:\n%s", out)
	}

	out, err = run(t, "--config", cfg, "idea", "show", ideaID, "--debate")
	if err != nil {
		t.Fatalf("idea show: %v", err)
	}
	for _, want := range []string{"Recipe planner", "Round 1", "Use a queue.", "No requirements recorded."} {
		if !strings.Contains(out, want) {
			t.Errorf("idea show missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "--config", cfg, "idea", "show", "missing-id"); err == nil {
		t.Error("unknown idea should fail")
	}
}

func TestTokenCmd(t *testing.T) {
	cfg := setupCLI(t)

	if _, err := run(t, "--config", cfg, "token", "ada@example.com"); err == nil {
		t.Error("token without secret should fail")
	}

	t.Setenv("FOCAL_JWT_SECRET", "cli-secret")
	out, err := run(t, "--config", cfg, "token", "ada@example.com", "--name", "Ada")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	id, err := identity.NewJWTVerifier("cli-secret").Verify(context.Background(), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
	if id.Email != "ada@example.com" || id.Name != "Ada" {
		t.Errorf("identity = %+v", id)
	}
}

func TestDBInitCmd(t *testing.T) {
	cfg := setupCLI(t)
	out, err := run(t, "--config", cfg, "db", "init")
	if err != nil || !strings.Contains(out, "focal.db") {
		t.Errorf("db init: %q, %v", out, err)
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
