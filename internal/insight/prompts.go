package insight

import (
	"fmt"
	"strings"

	"github.com/kagami-labs/kagami/internal/llm"
)

func obj(props map[string]*llm.Schema, required ...string) *llm.Schema {
	return &llm.Schema{Type: "object", Properties: props, Required: required}
}

func str() *llm.Schema    { return &llm.Schema{Type: "string"} }
func num() *llm.Schema    { return &llm.Schema{Type: "number"} }
func strArr() *llm.Schema { return &llm.Schema{Type: "array", Items: str()} }

func bigFivePrompt(digest string) string {
	return fmt.Sprintf(`以下のチャット会話履歴から、ユーザーの性格をBig Five（OCEAN）モデルで分析してください。

会話履歴:
%s

各因子を0-100のスコアで評価し、それぞれの説明を付けてください。
- Openness（開放性）: 新しいアイデアや経験への興味、創造性
- Conscientiousness（誠実性）: 計画性、責任感、目標志向
- Extraversion（外向性）: 社交性、積極性、会話の活発さ
- Agreeableness（協調性）: 協力的態度、感謝表現、柔軟性
- Neuroticism（神経症傾向）: 不安傾向、確認行動、迷いの表現

JSON形式で出力してください。`, digest)
}

func bigFiveSchema() *llm.Schema {
	factors := []string{"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"}
	scores := map[string]*llm.Schema{}
	descs := map[string]*llm.Schema{}
	for _, f := range factors {
		scores[f] = num()
		descs[f] = str()
	}
	return obj(map[string]*llm.Schema{
		"scores":        obj(scores, factors...),
		"descriptions":  obj(descs, factors...),
		"dominantTrait": str(),
		"summary":       str(),
	}, "scores", "descriptions", "dominantTrait", "summary")
}

func mbtiPrompt(digest string) string {
	return fmt.Sprintf(`以下のチャット会話履歴から、ユーザーのMBTI風性格タイプを診断してください。

会話履歴:
%s

4つの軸それぞれを-100から+100のスコアで評価してください:
- E/I軸: 外向(+100) vs 内向(-100) - 会話スタイル、雑談傾向
- S/N軸: 直感(+100) vs 感覚(-100) - 抽象的思考 vs 具体的思考
- T/F軸: 感情(+100) vs 思考(-100) - 感情的アプローチ vs 論理的アプローチ
- J/P軸: 知覚(+100) vs 判断(-100) - 探索的 vs 計画的

4文字のタイプコード（例: INTJ）、日本語のタイプ名（例: 建築家）、AI活用スタイルの説明を出力してください。

JSON形式で出力してください。`, digest)
}

func mbtiSchema() *llm.Schema {
	axes := []string{"ei", "sn", "tf", "jp"}
	scores := map[string]*llm.Schema{}
	for _, a := range axes {
		scores[a] = num()
	}
	return obj(map[string]*llm.Schema{
		"type":         str(),
		"axisScores":   obj(scores, axes...),
		"typeTitle":    str(),
		"description":  str(),
		"chatgptStyle": str(),
	}, "type", "axisScores", "typeTitle", "description", "chatgptStyle")
}

func thinkingStylePrompt(digest string) string {
	return fmt.Sprintf(`以下のチャット会話履歴から、ユーザーの思考スタイルを分析してください。

会話履歴:
%s

4つの軸それぞれを-100から+100のスコアで評価してください:
- 論理的(-100) vs 創造的(+100): 論理的思考か創造的思考か
- 専門型(-100) vs 汎用型(+100): 特定分野の深堀りか幅広い探求か
- 実践的(-100) vs 理論的(+100): 実用的解決か理論的理解か
- 独立型(-100) vs 協調型(+100): 自己完結か対話重視か

ユニークな思考スタイル名（例: 「探求するエンジニア」）、説明、強み、特徴を出力してください。

JSON形式で出力してください。`, digest)
}

func thinkingStyleSchema() *llm.Schema {
	axes := []string{"logicalCreative", "specialistGeneralist", "practicalTheoretical", "independentCollaborative"}
	scores := map[string]*llm.Schema{}
	for _, a := range axes {
		scores[a] = num()
	}
	return obj(map[string]*llm.Schema{
		"scores":          obj(scores, axes...),
		"styleName":       str(),
		"description":     str(),
		"strengths":       strArr(),
		"characteristics": strArr(),
	}, "scores", "styleName", "description", "strengths", "characteristics")
}

func communicationPrompt(digest string) string {
	return fmt.Sprintf(`以下のチャット会話履歴から、ユーザーのコミュニケーション傾向を分析してください。

会話履歴:
%s

以下のパターンを特定してください:
- questionStyle: "direct"（直接的）/ "gradual"（段階的）/ "exploratory"（探索的）
- expectedResponseFormat: "concise"（簡潔）/ "detailed"（詳細）/ "interactive"（対話的）
- feedbackTendency: "immediate"（即座）/ "delayed"（遅延）/ "minimal"（最小限）
- informationProcessing: "structured"（構造的）/ "freeform"（自由形式）

各パターンの説明、強み、改善点、AIとの効果的な対話のベストプラクティスを出力してください。

JSON形式で出力してください。`, digest)
}

func communicationSchema() *llm.Schema {
	keys := []string{"questionStyle", "expectedResponseFormat", "feedbackTendency", "informationProcessing"}
	patterns := map[string]*llm.Schema{
		"questionStyle":          {Type: "string", Enum: []string{"direct", "gradual", "exploratory"}},
		"expectedResponseFormat": {Type: "string", Enum: []string{"concise", "detailed", "interactive"}},
		"feedbackTendency":       {Type: "string", Enum: []string{"immediate", "delayed", "minimal"}},
		"informationProcessing":  {Type: "string", Enum: []string{"structured", "freeform"}},
	}
	descs := map[string]*llm.Schema{}
	for _, k := range keys {
		descs[k] = str()
	}
	return obj(map[string]*llm.Schema{
		"patterns":      obj(patterns, keys...),
		"descriptions":  obj(descs, keys...),
		"strengths":     strArr(),
		"improvements":  strArr(),
		"bestPractices": strArr(),
	}, "patterns", "descriptions", "strengths", "improvements", "bestPractices")
}

// summaryPrompt folds earlier step results into the final prompt so the
// generated summary stays consistent with them.
func summaryPrompt(digest string, results *Results) string {
	var context []string
	if results.BigFive != nil {
		context = append(context, fmt.Sprintf("Big Five: %sが優勢、%s", results.BigFive.DominantTrait, results.BigFive.Summary))
	}
	if results.MBTI != nil {
		context = append(context, fmt.Sprintf("MBTI: %s（%s）", results.MBTI.Type, results.MBTI.TypeTitle))
	}
	if results.ThinkingStyle != nil {
		context = append(context, fmt.Sprintf("思考スタイル: %s", results.ThinkingStyle.StyleName))
	}

	return fmt.Sprintf(`以下のチャット会話履歴と分析結果から、ユーザーの総合的なパーソナリティサマリーを生成してください。

会話履歴:
%s

これまでの分析結果:
%s

以下を出力してください:
- title: ユニークで印象的なパーソナリティタイトル（例: 「探求する革新者」「論理の詩人」）
- emoji: タイトルに合った絵文字1つ
- tagline: 一言キャッチコピー（20文字以内）
- description: 3-5文での性格特徴の説明
- strengths: AI活用における3つの強み
- growthPoints: さらに活用を高める2つのポイント
- recommendations: 性格に基づく3つの具体的なAI活用提案

JSON形式で出力してください。`, digest, strings.Join(context, "\n"))
}

func summarySchema() *llm.Schema {
	return obj(map[string]*llm.Schema{
		"title":           str(),
		"emoji":           str(),
		"tagline":         str(),
		"description":     str(),
		"strengths":       strArr(),
		"growthPoints":    strArr(),
		"recommendations": strArr(),
	}, "title", "emoji", "tagline", "description", "strengths", "growthPoints", "recommendations")
}

func conversationSummaryPrompt(title, userText string) string {
	return fmt.Sprintf(`以下の会話を30文字以内で要約してください:
タイトル: %s
ユーザー発言: %s`, title, userText)
}

func axisLabelPrompt(xNeg, xPos, yNeg, yPos []string) string {
	return fmt.Sprintf(`会話データを2次元に次元削減しました。各軸の両極端にある会話から軸の意味を推定してください。

X軸マイナス側の会話:
%s

X軸プラス側の会話:
%s

Y軸マイナス側の会話:
%s

Y軸プラス側の会話:
%s

各軸のラベルを短い単語（3-5文字）で提案してください。例: 技術↔企画、論理↔感情`,
		strings.Join(xNeg, "\n"), strings.Join(xPos, "\n"), strings.Join(yNeg, "\n"), strings.Join(yPos, "\n"))
}

func axisLabelSchema() *llm.Schema {
	return obj(map[string]*llm.Schema{
		"xPositive": str(),
		"xNegative": str(),
		"yPositive": str(),
		"yNegative": str(),
	}, "xPositive", "xNegative", "yPositive", "yNegative")
}
