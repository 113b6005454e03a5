// Package insight runs the model-backed personality analysis pipeline
// over normalized conversations. Each analysis is an independent step;
// failures and timeouts leave that step's field unset instead of
// failing the run.
package insight

// BigFiveScores holds the five OCEAN factors, each 0-100.
type BigFiveScores struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

type BigFiveDescriptions struct {
	Openness          string `json:"openness"`
	Conscientiousness string `json:"conscientiousness"`
	Extraversion      string `json:"extraversion"`
	Agreeableness     string `json:"agreeableness"`
	Neuroticism       string `json:"neuroticism"`
}

type BigFive struct {
	Scores        BigFiveScores       `json:"scores"`
	Descriptions  BigFiveDescriptions `json:"descriptions"`
	DominantTrait string              `json:"dominantTrait"`
	Summary       string              `json:"summary"`
}

// MBTIAxisScores are the four type axes, each -100 to +100.
type MBTIAxisScores struct {
	EI float64 `json:"ei"`
	SN float64 `json:"sn"`
	TF float64 `json:"tf"`
	JP float64 `json:"jp"`
}

type MBTI struct {
	Type         string         `json:"type"`
	AxisScores   MBTIAxisScores `json:"axisScores"`
	TypeTitle    string         `json:"typeTitle"`
	Description  string         `json:"description"`
	ChatGPTStyle string         `json:"chatgptStyle"`
}

// ThinkingStyleScores are bipolar axes, each -100 to +100.
type ThinkingStyleScores struct {
	LogicalCreative          float64 `json:"logicalCreative"`
	SpecialistGeneralist     float64 `json:"specialistGeneralist"`
	PracticalTheoretical     float64 `json:"practicalTheoretical"`
	IndependentCollaborative float64 `json:"independentCollaborative"`
}

type ThinkingStyle struct {
	Scores          ThinkingStyleScores `json:"scores"`
	StyleName       string              `json:"styleName"`
	Description     string              `json:"description"`
	Strengths       []string            `json:"strengths"`
	Characteristics []string            `json:"characteristics"`
}

type CommunicationPatterns struct {
	QuestionStyle          string `json:"questionStyle"`          // direct | gradual | exploratory
	ExpectedResponseFormat string `json:"expectedResponseFormat"` // concise | detailed | interactive
	FeedbackTendency       string `json:"feedbackTendency"`       // immediate | delayed | minimal
	InformationProcessing  string `json:"informationProcessing"`  // structured | freeform
}

type CommunicationDescriptions struct {
	QuestionStyle          string `json:"questionStyle"`
	ExpectedResponseFormat string `json:"expectedResponseFormat"`
	FeedbackTendency       string `json:"feedbackTendency"`
	InformationProcessing  string `json:"informationProcessing"`
}

type Communication struct {
	Patterns      CommunicationPatterns     `json:"patterns"`
	Descriptions  CommunicationDescriptions `json:"descriptions"`
	Strengths     []string                  `json:"strengths"`
	Improvements  []string                  `json:"improvements"`
	BestPractices []string                  `json:"bestPractices"`
}

type Summary struct {
	Title           string   `json:"title"`
	Emoji           string   `json:"emoji"`
	Tagline         string   `json:"tagline"`
	Description     string   `json:"description"`
	Strengths       []string `json:"strengths"`
	GrowthPoints    []string `json:"growthPoints"`
	Recommendations []string `json:"recommendations"`
}

type MapPoint struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	ConversationID string  `json:"conversationId"`
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
}

type AxisLabels struct {
	XPositive string `json:"xPositive"`
	XNegative string `json:"xNegative"`
	YPositive string `json:"yPositive"`
	YNegative string `json:"yNegative"`
}

type IntelligenceMap struct {
	Points     []MapPoint `json:"points"`
	AxisLabels AxisLabels `json:"axisLabels"`
}

// Results accumulates one optional field per pipeline step. Fields are
// only ever added, never cleared; a nil field means its step did not
// complete.
type Results struct {
	BigFive         *BigFive         `json:"bigFive,omitempty"`
	MBTI            *MBTI            `json:"mbti,omitempty"`
	ThinkingStyle   *ThinkingStyle   `json:"thinkingStyle,omitempty"`
	Communication   *Communication   `json:"communication,omitempty"`
	IntelligenceMap *IntelligenceMap `json:"intelligenceMap,omitempty"`
	Summary         *Summary         `json:"personalitySummary,omitempty"`
}
