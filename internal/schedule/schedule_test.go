package schedule

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"sheetql/internal/query"
	"sheetql/internal/source"
)

func writeSchedules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeSchedules(t, `
schedules:
  - name: nightly-orders
    cron: "0 2 * * *"
    sql: SELECT * FROM Orders.Data
    rules:
      - "ARRAY_LENGTH(items) > 0"
      - "id != ''"
  - name: hourly-sales
    cron: "@hourly"
    sql: SELECT * FROM Sales.2023
`)
	jobs, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	if jobs[0].Name != "nightly-orders" || len(jobs[0].Rules) != 2 {
		t.Errorf("job[0] = %+v", jobs[0])
	}
	if jobs[1].Cron != "@hourly" || len(jobs[1].Rules) != 0 {
		t.Errorf("job[1] = %+v", jobs[1])
	}
}

func TestLoadFileMissingFields(t *testing.T) {
	cases := map[string]string{
		"no name": "schedules:\n  - cron: \"* * * * *\"\n    sql: SELECT 1\n",
		"no cron": "schedules:\n  - name: j\n    sql: SELECT 1\n",
		"no sql":  "schedules:\n  - name: j\n    cron: \"* * * * *\"\n",
	}
	for label, content := range cases {
		if _, err := LoadFile(writeSchedules(t, content)); err == nil {
			t.Errorf("%s: expected error", label)
		}
	}
}

func TestLoadFileBadYAML(t *testing.T) {
	if _, err := LoadFile(writeSchedules(t, "schedules: [not: closed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFileAbsent(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestNewRunnerRejectsBadCron(t *testing.T) {
	x := query.New(source.NewMemory(), nil, slog.New(slog.DiscardHandler))
	_, err := NewRunner(x, []Job{{Name: "j", Cron: "not a cron", SQL: "SELECT 1"}}, slog.New(slog.DiscardHandler))
	if err == nil {
		t.Error("invalid cron expression must fail at registration")
	}
}

func TestRunJobLogsWithoutPanicking(t *testing.T) {
	src := source.NewMemory()
	src.AddSheet("f", "s", [][]string{{"v"}, {"1"}, {"5"}})
	log := slog.New(slog.DiscardHandler)
	x := query.New(src, nil, log)
	r, err := NewRunner(x, nil, log)
	if err != nil {
		t.Fatal(err)
	}

	// Failing rule and execution error paths both just log.
	r.runJob(Job{Name: "ok", SQL: "SELECT * FROM f.s", Rules: []string{"v > 3"}})
	r.runJob(Job{Name: "broken", SQL: "SELECT * FROM missing.sheet", Rules: []string{"v > 3"}})
}
