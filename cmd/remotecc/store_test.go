package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowpbx/remotecc/internal/config"
)

func TestImportRulesIntoSQLite(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DataDir: t.TempDir()}
	st, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	defer st.Close()

	path := filepath.Join(t.TempDir(), "rules.csv")
	csv := "state,area_codes,extension\nCA,\"415, 650\",100\nNV,,200\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("writing csv: %v", err)
	}

	ctx := context.Background()
	n, err := importRules(ctx, st.rules, path)
	if err != nil {
		t.Fatalf("importRules() error: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d rules, want 2", n)
	}

	rules, err := st.rules.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(rules) != 2 || rules[0].State != "CA" || rules[0].AreaCodes != "415, 650" {
		t.Errorf("rules = %+v", rules)
	}
	if err := st.PingContext(ctx); err != nil {
		t.Errorf("PingContext() error: %v", err)
	}
}

func TestImportRulesBadCSVKeepsTable(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DataDir: t.TempDir()}
	st, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := importRulesFrom(ctx, st.rules, strings.NewReader("CA,415,100\n")); err != nil {
		t.Fatalf("initial import error: %v", err)
	}
	if _, err := importRulesFrom(ctx, st.rules, strings.NewReader("CA,415\n")); err == nil {
		t.Fatal("expected error for short record")
	}

	rules, err := st.rules.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("table changed after failed import: %+v", rules)
	}
}

func TestImportRulesMissingFile(t *testing.T) {
	if _, err := importRules(context.Background(), nil, filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
