package reconcile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/leeovery/quizstore/internal/backup"
	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/doctor"
	"github.com/leeovery/quizstore/internal/repository"
	"github.com/leeovery/quizstore/internal/storage"
)

const (
	itemHeader    = "id,prompt_text,answer_token,reading,created_at,miss_count\n"
	attemptHeader = "id,item_id,attempted_at,is_correct,mistake_kind,memo,logged_at\n"
)

type fixture struct {
	store   *storage.FileStore
	backups *backup.Manager
}

func newFixture(t *testing.T, items, attempts string) fixture {
	t.Helper()
	root := t.TempDir()
	s, err := storage.Init(filepath.Join(root, "data"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(s.Path(storage.Items), []byte(items), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(storage.Attempts), []byte(attempts), 0644); err != nil {
		t.Fatal(err)
	}
	m := &backup.Manager{
		DataDir:   s.Dir(),
		BackupDir: filepath.Join(root, "backups"),
		Now:       func() time.Time { return time.Date(2024, 7, 15, 9, 0, 0, 0, time.Local) },
	}
	return fixture{store: s, backups: m}
}

func (f fixture) read(t *testing.T, c storage.Collection) string {
	t.Helper()
	data, err := os.ReadFile(f.store.Path(c))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

type failingSnapshotter struct{}

func (failingSnapshotter) Snapshot(...string) ([]string, error) {
	return nil, errors.New("disk full")
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("it sums miss_count into the first row of a duplicate group", func(t *testing.T) {
		f := newFixture(t,
			itemHeader+
				"A,漢字を書く,漢字,カンジ,2024-01-01T00:00:00,3\n"+
				"A,漢字を読む,漢字,カンジ,2024-02-01T00:00:00,5\n",
			attemptHeader)

		sum, err := ForStore(f.store, f.backups).Run(ctx)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		want := itemHeader + "A,漢字を書く,漢字,カンジ,2024-01-01T00:00:00,8\n"
		if got := f.read(t, storage.Items); got != want {
			t.Errorf("items =\n%s\nwant\n%s", got, want)
		}
		if diff := cmp.Diff([]Merge{{ID: "A", Rows: 2, MissCount: 8}}, sum.Merged); diff != "" {
			t.Errorf("merged mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it differs from read-side reconciliation for the same file", func(t *testing.T) {
		f := newFixture(t,
			itemHeader+
				"A,漢字を書く,漢字,カンジ,2024-01-01T00:00:00,2\n"+
				"A,漢字を書く,漢字,カンジ,2024-03-01T00:00:00,1\n",
			attemptHeader)

		problems := repository.NewProblems(f.store)
		before, err := problems.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(before) != 1 || before[0].MissCount != 1 {
			t.Fatalf("load before repair = %+v, want one item with miss_count 1", before)
		}

		if _, err := ForStore(f.store, f.backups).Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}

		after, err := problems.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(after) != 1 || after[0].MissCount != 3 {
			t.Errorf("load after repair = %+v, want one item with miss_count 3", after)
		}
	})

	t.Run("it removes attempts referencing a missing item", func(t *testing.T) {
		attempts := attemptHeader +
			"1,A,2024-01-01T00:00:00,True,none,,\n" +
			"2,Z,2024-01-01T00:00:00,False,other,,\n" +
			"3,A,2024-01-02T00:00:00,False,reading,,\n"
		f := newFixture(t, itemHeader+"A,漢字を書く,漢字,カンジ,2024-01-01T00:00:00,0\n", attempts)

		sum, err := ForStore(f.store, f.backups).Run(ctx)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := f.read(t, storage.Attempts)
		if strings.Count(got, "\n") != strings.Count(attempts, "\n")-1 {
			t.Errorf("attempts file should have one fewer row, got\n%s", got)
		}
		if strings.Contains(got, ",Z,") {
			t.Errorf("orphaned row survived:\n%s", got)
		}
		want := []DroppedAttempt{{AttemptID: "2", ItemID: "Z", Line: 3}}
		if diff := cmp.Diff(want, sum.DroppedAttempts); diff != "" {
			t.Errorf("dropped mismatch (-want +got):\n%s", diff)
		}
		if sum.String() != "problems: 1 -> 1\nattempts: 3 -> 2" {
			t.Errorf("summary = %q", sum.String())
		}
	})

	t.Run("it leaves files the integrity scan finds clean", func(t *testing.T) {
		f := newFixture(t,
			itemHeader+
				"A,漢字を書く,漢字,カンジ,2024-01-01T00:00:00,1\n"+
				"B,漢字を読む,漢字,カンジ,2024-01-01T00:00:00,0\n"+
				"A,漢字を書く,漢字,カンジ,2024-01-02T00:00:00,1\n"+
				",,,,,\n",
			attemptHeader+
				"1,A,2024-01-01T00:00:00,True,none,,\n"+
				"2,Q,2024-01-01T00:00:00,True,none,,\n"+
				"1,B,2024-01-01T00:00:00,False,other,,\n"+
				",,,,,,\n")

		if _, err := ForStore(f.store, f.backups).Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}

		r, err := doctor.Scan(ctx, f.store.Path(storage.Items), f.store.Path(storage.Attempts))
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if r.HasIssues() {
			t.Errorf("issues after repair: %v", r.Categories())
		}
		if r.Diagnostics.WarningCount() != 0 {
			t.Errorf("warnings after repair: %+v", r.Diagnostics.Results)
		}
	})

	t.Run("it matches item ids exactly, whitespace included", func(t *testing.T) {
		f := newFixture(t,
			itemHeader+
				" A,漢字を書く,漢字,カンジ,2024-01-01T00:00:00,1\n"+
				"A,漢字を読む,漢字,カンジ,2024-01-01T00:00:00,2\n",
			attemptHeader+"t1, A,2024-01-01T00:00:00,True,none,,\n")

		sum, err := ForStore(f.store, f.backups).Run(ctx)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if sum.Changed() || len(sum.Merged) != 0 || len(sum.DroppedAttempts) != 0 {
			t.Errorf("summary = %+v, want no changes", sum)
		}
		if got := f.read(t, storage.Attempts); !strings.Contains(got, "t1, A,") {
			t.Errorf("valid attempt was dropped:\n%s", got)
		}

		r, err := doctor.Scan(ctx, f.store.Path(storage.Items), f.store.Path(storage.Attempts))
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if r.HasIssues() {
			t.Errorf("issues after repair: %v", r.Categories())
		}
	})

	t.Run("it drops an attempt whose item id matches only after trimming", func(t *testing.T) {
		f := newFixture(t,
			itemHeader+" A,漢字を書く,漢字,カンジ,2024-01-01T00:00:00,1\n",
			attemptHeader+"t1,A,2024-01-01T00:00:00,True,none,,\n")

		sum, err := ForStore(f.store, f.backups).Run(ctx)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		want := []DroppedAttempt{{AttemptID: "t1", ItemID: "A", Line: 2}}
		if diff := cmp.Diff(want, sum.DroppedAttempts); diff != "" {
			t.Errorf("dropped mismatch (-want +got):\n%s", diff)
		}

		r, err := doctor.Scan(ctx, f.store.Path(storage.Items), f.store.Path(storage.Attempts))
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if r.HasIssues() {
			t.Errorf("issues after repair: %v", r.Categories())
		}
	})

	t.Run("it backs up both files before rewriting", func(t *testing.T) {
		items := itemHeader + "A,x,x,x,2024-01-01T00:00:00,1\nA,x,x,x,2024-01-01T00:00:00,1\n"
		f := newFixture(t, items, attemptHeader)

		sum, err := ForStore(f.store, f.backups).Run(ctx)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(sum.Backups) != 2 {
			t.Fatalf("backups = %v, want 2", sum.Backups)
		}
		data, err := os.ReadFile(sum.Backups[0])
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != items {
			t.Errorf("backup holds %q, want original content", data)
		}
	})

	t.Run("it writes nothing when the backup fails", func(t *testing.T) {
		items := itemHeader + "A,x,x,x,2024-01-01T00:00:00,1\nA,x,x,x,2024-01-01T00:00:00,1\n"
		f := newFixture(t, items, attemptHeader)

		_, err := ForStore(f.store, failingSnapshotter{}).Run(ctx)
		if err == nil {
			t.Fatal("expected error")
		}
		if got := f.read(t, storage.Items); got != items {
			t.Errorf("items changed after failed backup:\n%s", got)
		}
	})

	t.Run("it neither backs up nor writes clean files", func(t *testing.T) {
		items := itemHeader + "A,x,x,x,2024-01-01T00:00:00,1\n"
		f := newFixture(t, items, attemptHeader)

		sum, err := ForStore(f.store, f.backups).Run(ctx)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if sum.Changed() || len(sum.Backups) != 0 {
			t.Errorf("summary = %+v", sum)
		}
		entries, _ := f.backups.List()
		if len(entries) != 0 {
			t.Errorf("unexpected backups: %+v", entries)
		}
	})

	t.Run("it fails when another process holds the lock", func(t *testing.T) {
		f := newFixture(t, itemHeader, attemptHeader)
		held, err := storage.Open(f.store.Dir())
		if err != nil {
			t.Fatal(err)
		}
		unlock, err := held.LockExclusive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer unlock()

		short, err := storage.Open(f.store.Dir(), storage.WithLockTimeout(100*time.Millisecond))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ForStore(short, f.backups).Run(ctx); err == nil {
			t.Fatal("expected lock error")
		}
	})
}

func TestDryRun(t *testing.T) {
	t.Run("it reports changes without touching the files", func(t *testing.T) {
		items := itemHeader + "A,x,x,x,2024-01-01T00:00:00,3\nA,x,x,x,2024-01-01T00:00:00,5\n"
		attempts := attemptHeader + "1,Z,2024-01-01T00:00:00,True,none,,\n"
		f := newFixture(t, items, attempts)

		sum, err := ForStore(f.store, f.backups).DryRun(context.Background())
		if err != nil {
			t.Fatalf("DryRun: %v", err)
		}
		if !sum.DryRun || !sum.Changed() {
			t.Errorf("summary = %+v", sum)
		}
		if f.read(t, storage.Items) != items || f.read(t, storage.Attempts) != attempts {
			t.Error("dry run modified the data files")
		}
		if len(sum.Backups) != 0 {
			t.Errorf("dry run took backups: %v", sum.Backups)
		}
	})
}

func TestPlan(t *testing.T) {
	parse := func(t *testing.T, s string) *csvrow.Table {
		t.Helper()
		tbl, err := csvrow.Parse([]byte(s))
		if err != nil {
			t.Fatal(err)
		}
		return tbl
	}

	t.Run("it counts unparseable miss counts as zero and skips them", func(t *testing.T) {
		items := parse(t, itemHeader+"A,x,x,x,,abc\nA,x,x,x,,4\n")
		sum := Plan(items, parse(t, attemptHeader), nil)

		if sum.SkippedRows != 1 {
			t.Errorf("skipped = %d, want 1", sum.SkippedRows)
		}
		if v, _ := items.Rows[0].Get("miss_count"); v != "4" {
			t.Errorf("miss_count = %q, want 4", v)
		}
	})

	t.Run("it merges legacy incorrect_count columns", func(t *testing.T) {
		items := parse(t, "id,sentence,answer_kanji,reading,created_at,incorrect_count\nA,x,x,x,,1\nA,x,x,x,,2\n")
		Plan(items, parse(t, attemptHeader), nil)

		if diff := cmp.Diff([][]string{{"A", "x", "x", "x", "", "3"}}, items.Records()); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it drops item rows without an id and their attempts", func(t *testing.T) {
		items := parse(t, itemHeader+",x,x,x,,0\nA,x,x,x,,0\n")
		attempts := parse(t, attemptHeader+"1,,2024-01-01T00:00:00,True,,,\n2,A,2024-01-01T00:00:00,True,,,\n")
		sum := Plan(items, attempts, nil)

		if diff := cmp.Diff([]int{2}, sum.DroppedItemRows); diff != "" {
			t.Errorf("dropped rows mismatch (-want +got):\n%s", diff)
		}
		if sum.AttemptsAfter != 1 {
			t.Errorf("attempts after = %d, want 1", sum.AttemptsAfter)
		}
	})

	t.Run("it keeps the last row of a duplicate attempt id in place", func(t *testing.T) {
		items := parse(t, itemHeader+"A,x,x,x,,0\n")
		attempts := parse(t, attemptHeader+
			"1,A,2024-01-01T00:00:00,True,,first,\n"+
			"2,A,2024-01-01T00:00:00,True,,,\n"+
			"1,A,2024-01-01T00:00:00,False,,second,\n")
		sum := Plan(items, attempts, nil)

		var ids, memos []string
		for _, r := range attempts.Rows {
			id, _ := r.Get("id")
			memo, _ := r.Get("memo")
			ids = append(ids, id)
			memos = append(memos, memo)
		}
		if diff := cmp.Diff([]string{"2", "1"}, ids); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
		if memos[1] != "second" {
			t.Errorf("kept memo %q, want second", memos[1])
		}
		if diff := cmp.Diff([]string{"1"}, sum.CollapsedAttempts); diff != "" {
			t.Errorf("collapsed mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it trims only one trailing blank row", func(t *testing.T) {
		items := parse(t, itemHeader+"A,x,x,x,,0\n,,,,,\n,,,,,\n")
		sum := Plan(items, parse(t, attemptHeader), nil)
		if !sum.ItemsTrimmed {
			t.Errorf("summary = %+v, want items trimmed", sum)
		}
		if diff := cmp.Diff([]int{3}, sum.DroppedItemRows); diff != "" {
			t.Errorf("the second blank row should be dropped as an id-less row (-want +got):\n%s", diff)
		}
		if sum.ItemsAfter != 1 {
			t.Errorf("items after = %d, want 1", sum.ItemsAfter)
		}
	})

	t.Run("it records blank attempt rows it drops", func(t *testing.T) {
		items := parse(t, itemHeader+"A,x,x,x,,0\n")
		attempts := parse(t, attemptHeader+
			"1,A,2024-01-01T00:00:00,True,,,\n"+
			",,,,,,\n"+
			"2,A,2024-01-01T00:00:00,True,,,\n"+
			",,,,,,\n")
		sum := Plan(items, attempts, nil)

		if !sum.AttemptsTrimmed {
			t.Error("trailing blank attempt row not trimmed")
		}
		if diff := cmp.Diff([]int{3}, sum.DroppedBlankAttempts); diff != "" {
			t.Errorf("blank rows mismatch (-want +got):\n%s", diff)
		}
		if len(sum.DroppedAttempts) != 0 {
			t.Errorf("blank row reported as orphan: %+v", sum.DroppedAttempts)
		}
		if sum.AttemptsAfter != 2 {
			t.Errorf("attempts after = %d, want 2", sum.AttemptsAfter)
		}
	})
}

func TestPresent(t *testing.T) {
	t.Run("it renders changes and the count summary", func(t *testing.T) {
		s := Summary{
			DryRun:         true,
			ItemsBefore:    3,
			ItemsAfter:     2,
			AttemptsBefore: 5,
			AttemptsAfter:  4,
			Merged:         []Merge{{ID: "A", Rows: 2, MissCount: 3}},
			DroppedAttempts: []DroppedAttempt{
				{AttemptID: "9", ItemID: "Z", Line: 4},
			},
			DroppedBlankAttempts: []int{5},
		}
		var buf bytes.Buffer
		Present(&buf, s)

		want := "Repairing data files... [dry-run]\n" +
			"  ✓ Merged 2 rows of A (miss_count 3)\n" +
			"  ✓ Dropped attempt 9 referencing missing problem \"Z\" (line 4)\n" +
			"  ✓ Dropped blank attempt row (line 5)\n" +
			"\nproblems: 3 -> 2\nattempts: 5 -> 4\n"
		if got := buf.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("it says when there is nothing to repair", func(t *testing.T) {
		var buf bytes.Buffer
		Present(&buf, Summary{ItemsBefore: 1, ItemsAfter: 1})
		if !strings.Contains(buf.String(), "Nothing to repair.") {
			t.Errorf("got %q", buf.String())
		}
	})
}
