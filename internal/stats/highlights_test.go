package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/kagami-labs/kagami/internal/export"
)

func TestMostActive_TopFiveByMessageCount(t *testing.T) {
	day := ts("2024-03-01T10:00:00Z")
	var convs []export.Conversation
	for i := 1; i <= 6; i++ {
		var msgs []export.Message
		for j := 0; j < i; j++ {
			msgs = append(msgs, msg("user", "m", day))
		}
		convs = append(convs, conv(fmt.Sprintf("c%d", i), day, msgs...))
	}

	active := MostActive(convs)
	if len(active) != 5 {
		t.Fatalf("got %d highlights, want 5", len(active))
	}
	if active[0].ID != "c6" || active[0].MessageCount != 6 {
		t.Errorf("top = %+v, want c6 with 6 messages", active[0])
	}
	for i := 1; i < len(active); i++ {
		if active[i].MessageCount > active[i-1].MessageCount {
			t.Errorf("highlights not sorted: %d after %d", active[i].MessageCount, active[i-1].MessageCount)
		}
	}
}

func TestEarliest_SortedByCreateTime(t *testing.T) {
	base := ts("2024-03-01T10:00:00Z")
	convs := []export.Conversation{
		conv("newer", base.Add(48*time.Hour), msg("user", "a", base)),
		conv("oldest", base, msg("user", "b", base)),
		conv("middle", base.Add(24*time.Hour), msg("user", "c", base)),
	}

	earliest := Earliest(convs)
	if len(earliest) != 3 {
		t.Fatalf("got %d highlights, want 3", len(earliest))
	}
	if earliest[0].ID != "oldest" || earliest[1].ID != "middle" || earliest[2].ID != "newer" {
		t.Errorf("order = %s, %s, %s; want oldest, middle, newer", earliest[0].ID, earliest[1].ID, earliest[2].ID)
	}
}

func TestSummarize_Counts(t *testing.T) {
	day := ts("2024-03-01T10:00:00Z")
	convs := []export.Conversation{
		conv("c1", day,
			msg("user", "あいう", day),
			msg("assistant", "abc", day),
		),
	}

	h := summarize(convs)
	if len(h) != 1 {
		t.Fatalf("got %d summaries, want 1", len(h))
	}
	if h[0].MessageCount != 2 || h[0].UserMessageCount != 1 || h[0].AssistantMessageCount != 1 {
		t.Errorf("counts = %+v", h[0])
	}
	if h[0].TotalChars != 6 {
		t.Errorf("total chars = %d, want 6 (runes, not bytes)", h[0].TotalChars)
	}
}

func TestCompute_FullReport(t *testing.T) {
	day := ts("2024-03-01T10:00:00Z")
	convs := []export.Conversation{
		conv("c1", day,
			msg("user", "これはどうすればいいですか？", day),
			msg("assistant", "こうします", day),
		),
	}

	report := Compute(convs)
	if report.Basic.TotalConversations != 1 || report.Basic.TotalMessages != 2 {
		t.Errorf("basic = %+v", report.Basic)
	}
	if report.Insights.Questions.TotalQuestions != 1 {
		t.Errorf("questions = %+v", report.Insights.Questions)
	}
	if len(report.Insights.MostActive) != 1 {
		t.Errorf("most active = %+v", report.Insights.MostActive)
	}
}
