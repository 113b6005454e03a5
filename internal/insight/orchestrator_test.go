package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kagami-labs/kagami/internal/export"
	"github.com/kagami-labs/kagami/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func conv(id string, msgs ...export.Message) export.Conversation {
	return export.Conversation{
		ID:         id,
		Title:      "会話 " + id,
		CreateTime: ts("2024-03-01T10:00:00Z"),
		Messages:   msgs,
	}
}

func userMsg(content string) export.Message {
	at := ts("2024-03-01T10:00:00Z")
	return export.Message{Role: "user", Content: content, CreateTime: &at}
}

// fakeClient routes schema calls on prompt content so each pipeline
// step gets a plausible canned answer.
type fakeClient struct {
	generateFn func(ctx context.Context, prompt string) (string, error)
	schemaFn   func(ctx context.Context, prompt string, schema *llm.Schema) (json.RawMessage, error)
	embedFn    func(ctx context.Context, texts []string) ([][]float64, error)
	abortedFlg bool
}

func (f *fakeClient) Generate(ctx context.Context, prompt string) (string, error) {
	if f.generateFn == nil {
		return "", fmt.Errorf("generate not supported")
	}
	return f.generateFn(ctx, prompt)
}

func (f *fakeClient) GenerateWithSchema(ctx context.Context, prompt string, schema *llm.Schema) (json.RawMessage, error) {
	if f.schemaFn == nil {
		return nil, fmt.Errorf("schema generation not supported")
	}
	return f.schemaFn(ctx, prompt, schema)
}

func (f *fakeClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if f.embedFn == nil {
		return nil, fmt.Errorf("embeddings not supported")
	}
	return f.embedFn(ctx, texts)
}

func (f *fakeClient) Abort() { f.abortedFlg = true }

const (
	bigFiveJSON       = `{"scores":{"openness":80,"conscientiousness":60,"extraversion":40,"agreeableness":70,"neuroticism":30},"descriptions":{"openness":"o","conscientiousness":"c","extraversion":"e","agreeableness":"a","neuroticism":"n"},"dominantTrait":"openness","summary":"好奇心が強い"}`
	mbtiJSON          = `{"type":"INTJ","axisScores":{"ei":-40,"sn":60,"tf":-20,"jp":10},"typeTitle":"建築家","description":"d","chatgptStyle":"s"}`
	thinkingJSON      = `{"scores":{"logicalCreative":-30,"specialistGeneralist":20,"practicalTheoretical":-10,"independentCollaborative":40},"styleName":"探求するエンジニア","description":"d","strengths":["s"],"characteristics":["c"]}`
	communicationJSON = `{"patterns":{"questionStyle":"direct","expectedResponseFormat":"detailed","feedbackTendency":"immediate","informationProcessing":"structured"},"descriptions":{"questionStyle":"q","expectedResponseFormat":"r","feedbackTendency":"f","informationProcessing":"i"},"strengths":["s"],"improvements":["i"],"bestPractices":["b"]}`
	summaryJSON       = `{"title":"探求する革新者","emoji":"🔬","tagline":"tl","description":"d","strengths":["a"],"growthPoints":["g"],"recommendations":["r"]}`
	axisJSON          = `{"xPositive":"技術","xNegative":"企画","yPositive":"論理","yNegative":"感情"}`
)

func routeByPrompt(_ context.Context, prompt string, _ *llm.Schema) (json.RawMessage, error) {
	switch {
	case strings.Contains(prompt, "Big Five"):
		return json.RawMessage(bigFiveJSON), nil
	case strings.Contains(prompt, "MBTI"):
		return json.RawMessage(mbtiJSON), nil
	case strings.Contains(prompt, "思考スタイル"):
		return json.RawMessage(thinkingJSON), nil
	case strings.Contains(prompt, "コミュニケーション傾向"):
		return json.RawMessage(communicationJSON), nil
	case strings.Contains(prompt, "次元削減"):
		return json.RawMessage(axisJSON), nil
	case strings.Contains(prompt, "パーソナリティサマリー"):
		return json.RawMessage(summaryJSON), nil
	}
	return nil, fmt.Errorf("unexpected prompt: %.40s", prompt)
}

func mapConversations(n int) []export.Conversation {
	convs := make([]export.Conversation, n)
	for i := range convs {
		convs[i] = conv(fmt.Sprintf("c%d", i), userMsg(fmt.Sprintf("トピック %d について教えて", i)))
	}
	return convs
}

func happyClient() *fakeClient {
	return &fakeClient{
		schemaFn: routeByPrompt,
		generateFn: func(_ context.Context, prompt string) (string, error) {
			return "要約テキスト", nil
		},
		embedFn: func(_ context.Context, texts []string) ([][]float64, error) {
			vectors := make([][]float64, len(texts))
			for i := range vectors {
				vectors[i] = []float64{float64(i), float64(i * i), 1}
			}
			return vectors, nil
		},
	}
}

func TestRun_AllStepsPopulate(t *testing.T) {
	o := New(happyClient(), discardLogger())
	results := o.Run(context.Background(), mapConversations(5), nil)

	if results.BigFive == nil || results.BigFive.DominantTrait != "openness" {
		t.Errorf("big five = %+v", results.BigFive)
	}
	if results.MBTI == nil || results.MBTI.Type != "INTJ" {
		t.Errorf("mbti = %+v", results.MBTI)
	}
	if results.ThinkingStyle == nil || results.ThinkingStyle.StyleName != "探求するエンジニア" {
		t.Errorf("thinking style = %+v", results.ThinkingStyle)
	}
	if results.Communication == nil || results.Communication.Patterns.QuestionStyle != "direct" {
		t.Errorf("communication = %+v", results.Communication)
	}
	if results.IntelligenceMap == nil || len(results.IntelligenceMap.Points) != 5 {
		t.Errorf("intelligence map = %+v", results.IntelligenceMap)
	}
	if results.Summary == nil || results.Summary.Title != "探求する革新者" {
		t.Errorf("summary = %+v", results.Summary)
	}
}

func TestRun_ProgressMonotonicAndComplete(t *testing.T) {
	o := New(happyClient(), discardLogger())

	var percents []int
	var labels []string
	o.Run(context.Background(), mapConversations(3), func(p int, label string) {
		percents = append(percents, p)
		labels = append(labels, label)
	})

	if len(percents) != 12 {
		t.Fatalf("got %d progress reports, want 12 (start+finish per step)", len(percents))
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %v", percents)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("final progress = %d, want 100", percents[len(percents)-1])
	}
	if !strings.HasSuffix(labels[0], "中...") {
		t.Errorf("first label = %q, want a starting label", labels[0])
	}
	if !strings.HasSuffix(labels[len(labels)-1], "完了") {
		t.Errorf("last label = %q, want a completion label", labels[len(labels)-1])
	}
}

func TestRun_StepFailuresLeaveFieldsUnset(t *testing.T) {
	calls := 0
	client := &fakeClient{
		schemaFn: func(ctx context.Context, prompt string, schema *llm.Schema) (json.RawMessage, error) {
			calls++
			if calls > 2 {
				return nil, &llm.APIError{Code: llm.ErrAuth, Message: "key revoked"}
			}
			return routeByPrompt(ctx, prompt, schema)
		},
	}

	o := New(client, discardLogger())
	var final int
	results := o.Run(context.Background(), mapConversations(2), func(p int, _ string) { final = p })

	if results.BigFive == nil || results.MBTI == nil {
		t.Errorf("first two steps should have populated: %+v", results)
	}
	if results.ThinkingStyle != nil || results.Communication != nil || results.Summary != nil {
		t.Errorf("failed steps must leave fields unset: %+v", results)
	}
	if results.IntelligenceMap != nil {
		t.Errorf("map should be nil without embeddings: %+v", results.IntelligenceMap)
	}
	// Failed steps still complete; the pipeline never stops for them.
	if final != 100 {
		t.Errorf("final progress = %d, want 100", final)
	}
}

func TestRun_TotalBudgetExhaustedReturnsPartialResults(t *testing.T) {
	client := happyClient()
	base := client.schemaFn
	client.schemaFn = func(ctx context.Context, prompt string, schema *llm.Schema) (json.RawMessage, error) {
		time.Sleep(30 * time.Millisecond)
		return base(ctx, prompt, schema)
	}

	o := New(client, discardLogger())
	o.totalBudget = 10 * time.Millisecond

	var percents []int
	var labels []string
	results := o.Run(context.Background(), mapConversations(3), func(p int, label string) {
		percents = append(percents, p)
		labels = append(labels, label)
	})

	if results.BigFive == nil {
		t.Error("step completed before the deadline should be kept")
	}
	if results.MBTI != nil || results.ThinkingStyle != nil || results.Summary != nil {
		t.Errorf("steps past the deadline must stay unset: %+v", results)
	}

	last := len(percents) - 1
	if percents[last] != 15 {
		t.Errorf("final progress = %d, want 15 (one completed step)", percents[last])
	}
	if labels[last] != "タイムアウト - 部分結果を表示" {
		t.Errorf("final label = %q, want the timeout notice", labels[last])
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %v", percents)
		}
	}
}

func TestRun_AbortStopsAtStepBoundary(t *testing.T) {
	client := happyClient()
	o := New(client, discardLogger())

	var final int
	results := o.Run(context.Background(), mapConversations(3), func(p int, _ string) {
		final = p
		if p >= 30 {
			o.Abort()
		}
	})

	if results.BigFive == nil || results.MBTI == nil {
		t.Errorf("completed steps missing: %+v", results)
	}
	if results.ThinkingStyle != nil || results.Summary != nil {
		t.Errorf("aborted run should not have later steps: %+v", results)
	}
	if final != 30 {
		t.Errorf("final progress = %d, want 30 (two steps of 15)", final)
	}
	if !client.abortedFlg {
		t.Error("abort was not forwarded to the provider client")
	}
}

func TestRun_NeverReturnsNil(t *testing.T) {
	client := &fakeClient{} // every call errors
	o := New(client, discardLogger())

	results := o.Run(context.Background(), nil, nil)
	if results == nil {
		t.Fatal("results must always be non-nil")
	}
	if results.BigFive != nil || results.Summary != nil {
		t.Errorf("expected empty results, got %+v", results)
	}
}

func TestBuildDigest_Truncation(t *testing.T) {
	long := strings.Repeat("あ", 300)
	convs := []export.Conversation{conv("c1", userMsg(long))}

	digest := buildDigest(convs)
	if !strings.Contains(digest, "【会話1】") {
		t.Errorf("digest missing conversation header: %.80s", digest)
	}
	if strings.Count(digest, "あ") != digestMessageRunes {
		t.Errorf("user text not truncated to %d runes: %d", digestMessageRunes, strings.Count(digest, "あ"))
	}
}

func TestBuildDigest_ConversationCap(t *testing.T) {
	convs := mapConversations(150)
	digest := buildDigest(convs)
	if strings.Contains(digest, "【会話101】") {
		t.Error("digest includes conversations beyond the cap")
	}
	if !strings.Contains(digest, "【会話100】") {
		t.Error("digest missing the last capped conversation")
	}
}

func TestTruncRunes(t *testing.T) {
	if got := truncRunes("あいうえお", 3); got != "あいう" {
		t.Errorf("truncRunes = %q", got)
	}
	if got := truncRunes("ab", 3); got != "ab" {
		t.Errorf("truncRunes = %q", got)
	}
	if utf8.RuneCountInString(truncRunes(strings.Repeat("字", 600), digestConversationRunes)) != digestConversationRunes {
		t.Error("conversation truncation wrong")
	}
}
