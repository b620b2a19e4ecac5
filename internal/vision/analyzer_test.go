package vision

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/snaplist/internal/ai"
	"github.com/hitoshi/snaplist/internal/model"
)

// --- モック定義 ---

type mockGenerator struct {
	generateFn func(ctx context.Context, prompt string, image *ai.Image) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, image *ai.Image) (string, error) {
	return m.generateFn(ctx, prompt, image)
}

type recordedMetrics struct {
	analysis []string
	latency  []string
}

func (r *recordedMetrics) RecordAnalysis(outcome string)   { r.analysis = append(r.analysis, outcome) }
func (r *recordedMetrics) RecordGeneration(string)         {}
func (r *recordedMetrics) RecordUpload(string)             {}
func (r *recordedMetrics) RecordBlobDelete(string)         {}
func (r *recordedMetrics) RecordHTTPStatus(int)            {}
func (r *recordedMetrics) RecordAILatency(op string, _ time.Duration) {
	r.latency = append(r.latency, op)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func reply(s string, err error) *mockGenerator {
	return &mockGenerator{generateFn: func(ctx context.Context, prompt string, image *ai.Image) (string, error) {
		return s, err
	}}
}

// --- Analyze ---

func TestAnalyze_ValidJSON(t *testing.T) {
	var gotImage *ai.Image
	gen := &mockGenerator{generateFn: func(ctx context.Context, prompt string, image *ai.Image) (string, error) {
		gotImage = image
		if !strings.Contains(prompt, `"confidence"`) {
			t.Errorf("プロンプトにconfidenceキーの指定が含まれていない")
		}
		return "```json\n{\"labels\":[\"Apple\",\"iPhone 14 Pro\"],\"text\":\"Designed by Apple\",\"objects\":[\"smartphone\"],\"colors\":[\"deep purple\"],\"confidence\":0.93}\n```", nil
	}}
	rec := &recordedMetrics{}
	var buf bytes.Buffer
	a := NewAnalyzer(gen, rec, newTestLogger(&buf))

	got, err := a.Analyze(context.Background(), []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Analyze がエラーを返した: %v", err)
	}

	want := &model.AnalysisResult{
		Labels:     []string{"Apple", "iPhone 14 Pro"},
		Text:       "Designed by Apple",
		Objects:    []string{"smartphone"},
		Colors:     []string{"deep purple"},
		Confidence: 0.93,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze = %+v, want %+v", got, want)
	}
	if gotImage == nil || string(gotImage.Data) != "img" || gotImage.MIMEType != "image/png" {
		t.Errorf("画像がプロバイダに渡されていない: %+v", gotImage)
	}
	if !reflect.DeepEqual(rec.analysis, []string{"success"}) {
		t.Errorf("analysis metrics = %v, want [success]", rec.analysis)
	}
	if !reflect.DeepEqual(rec.latency, []string{"analyze"}) {
		t.Errorf("latency metrics = %v, want [analyze]", rec.latency)
	}
}

func TestAnalyze_MissingFieldsUseDefaults(t *testing.T) {
	var buf bytes.Buffer
	a := NewAnalyzer(reply(`{"labels":["lamp"]}`, nil), nil, newTestLogger(&buf))

	got, err := a.Analyze(context.Background(), []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Analyze がエラーを返した: %v", err)
	}

	want := &model.AnalysisResult{
		Labels:     []string{"lamp"},
		Text:       "",
		Objects:    []string{},
		Colors:     []string{},
		Confidence: 0.8,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze = %+v, want %+v", got, want)
	}
}

func TestAnalyze_ConfidenceClamped(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{`{"confidence": 1.7}`, 1},
		{`{"confidence": -0.2}`, 0},
		{`{"confidence": 0}`, 0.8},
		{`{"confidence": 0.42}`, 0.42},
	}

	for _, tt := range tests {
		got, ok := ParseAnalysis(tt.reply)
		if !ok {
			t.Fatalf("ParseAnalysis(%q) がフォールバックした", tt.reply)
		}
		if got.Confidence != tt.want {
			t.Errorf("ParseAnalysis(%q).Confidence = %v, want %v", tt.reply, got.Confidence, tt.want)
		}
	}
}

func TestAnalyze_MalformedReplyFallsBack(t *testing.T) {
	rec := &recordedMetrics{}
	var buf bytes.Buffer
	a := NewAnalyzer(reply("I see a nice mug on a table.", nil), rec, newTestLogger(&buf))

	got, err := a.Analyze(context.Background(), []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("不正な応答でもエラーを返してはならない: %v", err)
	}

	want := &model.AnalysisResult{
		Labels:     []string{"product", "item"},
		Text:       "",
		Objects:    []string{"object"},
		Colors:     []string{"mixed"},
		Confidence: 0.7,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze = %+v, want %+v", got, want)
	}
	if !reflect.DeepEqual(rec.analysis, []string{"fallback"}) {
		t.Errorf("analysis metrics = %v, want [fallback]", rec.analysis)
	}
	if !strings.Contains(buf.String(), "フォールバック") {
		t.Errorf("フォールバックの警告ログが出力されていない: %s", buf.String())
	}
}

func TestFallback_KeywordSniffing(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		wantText   string
		wantColors []string
	}{
		{"テキストへの言及", "There are some WORDS printed on it", "Text detected in image", []string{"mixed"}},
		{"lettersへの言及", "letters on the side", "Text detected in image", []string{"mixed"}},
		{"色への言及", "A Black bottle", "", []string{"mixed colors"}},
		{"両方", "white text on a red label", "Text detected in image", []string{"mixed colors"}},
		{"言及なし", "a ceramic mug", "", []string{"mixed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback(tt.reply)
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if !reflect.DeepEqual(got.Colors, tt.wantColors) {
				t.Errorf("Colors = %v, want %v", got.Colors, tt.wantColors)
			}
			if got.Confidence != 0.7 {
				t.Errorf("Confidence = %v, want 0.7", got.Confidence)
			}
		})
	}
}

func TestAnalyze_ProviderFailure_ReturnsAnalysisError(t *testing.T) {
	rec := &recordedMetrics{}
	var buf bytes.Buffer
	a := NewAnalyzer(reply("", errors.New("status 503")), rec, newTestLogger(&buf))

	_, err := a.Analyze(context.Background(), []byte("img"), "image/jpeg")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeAnalysisFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeAnalysisFailed)
	}
	if !reflect.DeepEqual(rec.analysis, []string{"failure"}) {
		t.Errorf("analysis metrics = %v, want [failure]", rec.analysis)
	}
}

func TestAnalyze_EmptyReply_ReturnsAnalysisError(t *testing.T) {
	var buf bytes.Buffer
	a := NewAnalyzer(reply("", nil), nil, newTestLogger(&buf))

	_, err := a.Analyze(context.Background(), []byte("img"), "image/jpeg")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAnalysisFailed {
		t.Errorf("err = %v, want ANALYSIS_FAILED", err)
	}
}

// 空白だけの応答は空応答ではなく不正な出力としてフォールバックする。
func TestAnalyze_WhitespaceReply_UsesFallback(t *testing.T) {
	var buf bytes.Buffer
	a := NewAnalyzer(reply(" \n ", nil), nil, newTestLogger(&buf))

	res, err := a.Analyze(context.Background(), []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Confidence != 0.7 {
		t.Fatalf("result = %+v, want fallback with confidence 0.7", res)
	}
	if len(res.Labels) != 2 || res.Labels[0] != "product" || res.Labels[1] != "item" {
		t.Errorf("labels = %v, want [product item]", res.Labels)
	}
}

func TestParseAnalysis_TrailingBraceRejected(t *testing.T) {
	got, ok := ParseAnalysis(`{"labels":["a"]}}`)
	if ok {
		t.Fatalf("余分な閉じ括弧を含む応答を受理した: %+v", got)
	}
	if got.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want fallback 0.7", got.Confidence)
	}
}
