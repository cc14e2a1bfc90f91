package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a11yscan/a11yscan/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func sampleReport(siteURL string, totalViolations int) *model.SiteReport {
	return &model.SiteReport{
		SiteURL:   siteURL,
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Summary: model.Summary{
			PagesCrawled:    2,
			PagesAnalyzed:   2,
			TotalViolations: totalViolations,
			ViolationsBySeverity: map[string]int{
				"serious": totalViolations,
			},
			CompliancePercent: 50,
		},
		PageReports: []model.PageReport{
			{URL: siteURL, Analyzers: []string{"axe"}},
		},
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, "a11yscan.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false requires existing database", func(t *testing.T) {
		t.Parallel()

		opts := Options{CreateIfNotExists: false, EnableWAL: true}
		if _, err := Open(filepath.Join(t.TempDir(), "absent"), opts); err == nil {
			t.Error("expected error opening a missing database")
		}
	})
}

func TestSaveAndGetLatestReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.SaveReport(ctx, sampleReport("https://example.com/", 3)); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	newer := sampleReport("https://example.com/", 1)
	newer.Timestamp = newer.Timestamp.Add(time.Hour)
	if _, err := db.SaveReport(ctx, newer); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	got, err := db.GetLatestReport(ctx, "https://example.com/")
	if err != nil {
		t.Fatalf("GetLatestReport() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetLatestReport() = nil, want the newer report")
	}
	if got.Summary.TotalViolations != 1 {
		t.Errorf("TotalViolations = %d, want the newer report's 1", got.Summary.TotalViolations)
	}
	if len(got.PageReports) != 1 {
		t.Errorf("len(PageReports) = %d, want 1", len(got.PageReports))
	}
}

func TestGetLatestReportUnknownSite(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	got, err := db.GetLatestReport(context.Background(), "https://never-audited.example.com/")
	if err != nil {
		t.Fatalf("GetLatestReport() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetLatestReport() = %+v, want nil for an unaudited site", got)
	}
}

func TestGetReportByID(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveReport(ctx, sampleReport("https://example.com/", 3))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	got, err := db.GetReportByID(ctx, id)
	if err != nil {
		t.Fatalf("GetReportByID() error = %v", err)
	}
	if got == nil || got.SiteURL != "https://example.com/" {
		t.Errorf("GetReportByID() = %+v, want the stored report", got)
	}

	missing, err := db.GetReportByID(ctx, id+999)
	if err != nil {
		t.Fatalf("GetReportByID() error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetReportByID(unknown) = %+v, want nil", missing)
	}
}

func TestListSites(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for _, site := range []string{"https://b.example.com/", "https://a.example.com/", "https://b.example.com/"} {
		if _, err := db.SaveReport(ctx, sampleReport(site, 1)); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	sites, err := db.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites() error = %v", err)
	}
	want := []string{"https://a.example.com/", "https://b.example.com/"}
	if len(sites) != len(want) {
		t.Fatalf("ListSites() = %v, want %v", sites, want)
	}
	for i := range want {
		if sites[i] != want[i] {
			t.Errorf("ListSites()[%d] = %s, want %s", i, sites[i], want[i])
		}
	}
}

func TestGetAuditHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	first := sampleReport("https://example.com/", 3)
	second := sampleReport("https://example.com/", 1)
	second.Timestamp = first.Timestamp.Add(time.Hour)

	if _, err := db.SaveReport(ctx, first); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if _, err := db.SaveReport(ctx, second); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	history, err := db.GetAuditHistory(ctx, "https://example.com/")
	if err != nil {
		t.Fatalf("GetAuditHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}

	// Newest first.
	if history[0].TotalViolations != 1 || history[1].TotalViolations != 3 {
		t.Errorf("history order = [%d, %d] violations, want newest first [1, 3]",
			history[0].TotalViolations, history[1].TotalViolations)
	}
	if history[0].SeveritySummary["serious"] != 1 {
		t.Errorf("SeveritySummary = %v, want serious:1", history[0].SeveritySummary)
	}
	if history[0].Timestamp.IsZero() {
		t.Error("Timestamp not parsed")
	}
}
