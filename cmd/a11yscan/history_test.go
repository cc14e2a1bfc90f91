package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/model"
)

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "history [url]" {
			t.Errorf("expected use 'history [url]', got %q", cmd.Use)
		}
	})

	t.Run("has report-id flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("report-id")
		if flag == nil {
			t.Fatal("expected report-id flag")
		}
		if flag.Shorthand != "i" {
			t.Errorf("expected shorthand 'i', got %q", flag.Shorthand)
		}
	})

	t.Run("has json flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("json")
		if flag == nil {
			t.Fatal("expected json flag")
		}
		if flag.Shorthand != "j" {
			t.Errorf("expected shorthand 'j', got %q", flag.Shorthand)
		}
	})
}

// newHistoryTestDB creates a database with one stored audit.
func newHistoryTestDB(t *testing.T) *database.HistoryDB {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	siteReport := &model.SiteReport{
		SiteURL:   "https://example.com/",
		Timestamp: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Summary: model.Summary{
			PagesAnalyzed:     3,
			TotalViolations:   7,
			CompliancePercent: 33.3,
		},
	}
	if _, err := db.SaveReport(context.Background(), siteReport); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}
	return db
}

func TestPrintSites(t *testing.T) {
	t.Parallel()

	db := newHistoryTestDB(t)

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)

	if err := printSites(context.Background(), cmd, db, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "https://example.com/") {
		t.Errorf("expected site listing, got %q", output)
	}
}

func TestPrintSiteHistory(t *testing.T) {
	t.Parallel()

	db := newHistoryTestDB(t)

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)

	if err := printSiteHistory(context.Background(), cmd, db, "https://example.com/", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "VIOLATIONS") {
		t.Errorf("expected history table header, got %q", output)
	}
	if !strings.Contains(output, "33.3%") {
		t.Errorf("expected compliance column, got %q", output)
	}
}

func TestPrintSiteHistoryEmpty(t *testing.T) {
	t.Parallel()

	db := newHistoryTestDB(t)

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)

	if err := printSiteHistory(context.Background(), cmd, db, "https://other.example.com/", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "No audits recorded") {
		t.Errorf("expected empty-history message, got %q", buf.String())
	}
}

func TestPrintStoredReport(t *testing.T) {
	t.Parallel()

	db := newHistoryTestDB(t)

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)

	if err := printStoredReport(context.Background(), cmd, db, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"site_url"`) {
		t.Errorf("expected JSON report output, got %q", buf.String())
	}

	if err := printStoredReport(context.Background(), cmd, db, 999); err == nil {
		t.Error("expected error for unknown report ID")
	}
}
