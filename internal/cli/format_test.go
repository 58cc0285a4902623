package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/leeovery/quizstore/internal/quiz"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name               string
		toon, pretty, json bool
		configured         string
		tty                bool
		want               OutputFormat
	}{
		{name: "it defaults to pretty on a terminal", configured: "auto", tty: true, want: FormatPretty},
		{name: "it defaults to TOON off a terminal", configured: "auto", want: FormatTOON},
		{name: "it prefers the configured format to the TTY default", configured: "json", tty: true, want: FormatJSON},
		{name: "it prefers a flag to the configured format", pretty: true, configured: "json", want: FormatPretty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveFormat(tt.toon, tt.pretty, tt.json, tt.configured, tt.tty)
			if err != nil {
				t.Fatalf("ResolveFormat: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("it rejects more than one format flag", func(t *testing.T) {
		if _, err := ResolveFormat(true, false, true, "auto", false); err == nil {
			t.Error("expected error")
		}
	})
}

func TestDisplayWidth(t *testing.T) {
	t.Run("it counts wide characters as two cells", func(t *testing.T) {
		if got := displayWidth("漢字ab"); got != 6 {
			t.Errorf("got %d, want 6", got)
		}
		if got := displayWidth("ｶﾝｼﾞ"); got != 4 {
			t.Errorf("half-width kana: got %d, want 4", got)
		}
	})

	t.Run("it truncates on a cell budget with an ellipsis", func(t *testing.T) {
		if got := truncate("漢字を書く練習", 7); got != "漢字を…" {
			t.Errorf("got %q", got)
		}
		if got := truncate("短い", 7); got != "短い" {
			t.Errorf("got %q", got)
		}
	})
}

func TestPrettyAttemptList(t *testing.T) {
	t.Run("it shows the mistake kind and memo for incorrect attempts", func(t *testing.T) {
		at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.Local)
		attempts := []quiz.Attempt{
			{ID: "1", ItemID: "A", AttemptedAt: at, IsCorrect: true, MistakeKind: quiz.MistakeNone},
			{ID: "2", ItemID: "A", AttemptedAt: at, MistakeKind: quiz.MistakeStroke, Memo: "はね"},
		}
		var buf bytes.Buffer
		if err := (&PrettyFormatter{}).FormatAttemptList(&buf, attempts); err != nil {
			t.Fatal(err)
		}
		want := "ID  PROBLEM  WHEN              OK  MISTAKE\n" +
			"1   A        2024-07-01 08:00  ✓\n" +
			"2   A        2024-07-01 08:00  ✗   stroke: はね\n"
		if got := buf.String(); got != want {
			t.Errorf("got\n%s\nwant\n%s", got, want)
		}
	})
}

func TestToonSection(t *testing.T) {
	t.Run("it renders one indented value row", func(t *testing.T) {
		got := toonSection("backups", []string{"dir", "count"}, []any{"/tmp/b", 3})
		if got != "backups{dir,count}:\n  /tmp/b,3\n" {
			t.Errorf("got %q", got)
		}
	})
}
