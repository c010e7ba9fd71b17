package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/genai"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubGenerator struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	prompt string
	parts  []*genai.Part
	model  string
	config *genai.GenerateContentConfig
}

func (s *stubGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.model = model
	s.config = config
	s.parts = contents[0].Parts
	s.prompt = contents[0].Parts[0].Text
	if s.err != nil {
		return nil, s.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(s.reply, genai.RoleModel)}},
	}, nil
}

func newTestGateway(gen Generator) *Gateway {
	return NewGatewayWithGenerator(gen, Config{Timeout: time.Second}, nil)
}

func TestNewGatewayRequiresKey(t *testing.T) {
	_, err := NewGateway(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
		want  Language
	}{
		{"marathi", "mr", nil, Marathi},
		{"uppercase with padding", "  HI\n", nil, Hindi},
		{"longer answer truncated", "kn (Kannada)", nil, Kannada},
		{"unsupported code", "fr", nil, English},
		{"garbage", "???", nil, English},
		{"transport failure", "", errors.New("connection reset"), English},
		{"empty reply", "", nil, English},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(&stubGenerator{reply: tc.reply, err: tc.err})
			assert.Equal(t, tc.want, gw.DetectLanguage(context.Background(), "माझ्या पिकाला पाणी किती द्यावे?"))
		})
	}
}

func TestDetectLanguageBlankSkipsModel(t *testing.T) {
	gen := &stubGenerator{reply: "hi"}
	gw := newTestGateway(gen)
	assert.Equal(t, English, gw.DetectLanguage(context.Background(), "   "))
	assert.Zero(t, gen.calls)
}

func TestAnswerFarmingQuestion(t *testing.T) {
	gen := &stubGenerator{reply: "  Water every third day.  "}
	gw := newTestGateway(gen)

	out, err := gw.AnswerFarmingQuestion(context.Background(), "How often should I water tomatoes?", Hindi)
	require.NoError(t, err)
	assert.Equal(t, "Water every third day.", out)
	assert.Equal(t, DefaultModel, gen.model)
	assert.Contains(t, gen.prompt, "Respond ONLY in Hindi language.")
	assert.Contains(t, gen.prompt, "How often should I water tomatoes?")
	require.NotNil(t, gen.config)
	require.NotNil(t, gen.config.SystemInstruction)
	assert.Contains(t, gen.config.SystemInstruction.Parts[0].Text, "Krishi Mitra")
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	gw := newTestGateway(gen)

	_, err := gw.GenerateCropKnowledge(context.Background(), "Wheat", Language("fr"))
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, "Respond entirely in English language.")
	assert.Contains(t, gen.prompt, "Wheat")
}

func TestGatewayErrorsAreNotText(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	gw := newTestGateway(gen)

	out, err := gw.GetSchemeInfo(context.Background(), "PM-KISAN", English)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEmptyResponseIsGatewayError(t *testing.T) {
	gw := newTestGateway(&stubGenerator{reply: "   "})
	_, err := gw.AnswerFarmingQuestion(context.Background(), "Best fertilizer for cotton?", English)
	assert.ErrorIs(t, err, ErrGateway)
}

func TestEmptyInputsRejected(t *testing.T) {
	gen := &stubGenerator{reply: "x"}
	gw := newTestGateway(gen)
	ctx := context.Background()

	_, err := gw.AnswerFarmingQuestion(ctx, " ", English)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = gw.GenerateCropKnowledge(ctx, "", English)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = gw.GetSchemeInfo(ctx, "", English)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = gw.AnalyzeCropImage(ctx, nil, "image/png", "", English)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeCropImage(t *testing.T) {
	gen := &stubGenerator{reply: "Leaf rust detected."}
	gw := newTestGateway(gen)
	img := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	out, err := gw.AnalyzeCropImage(context.Background(), img, "", "yellow spots on leaves", Marathi)
	require.NoError(t, err)
	assert.Equal(t, "Leaf rust detected.", out)
	require.Len(t, gen.parts, 2)
	assert.Contains(t, gen.parts[0].Text, "Respond in Marathi language.")
	assert.Contains(t, gen.parts[0].Text, "yellow spots on leaves")
	require.NotNil(t, gen.parts[1].InlineData)
	assert.Equal(t, "image/png", gen.parts[1].InlineData.MIMEType)
	assert.Equal(t, img, gen.parts[1].InlineData.Data)
}

func TestAnalyzeCropImageWithoutContext(t *testing.T) {
	gen := &stubGenerator{reply: "Healthy."}
	gw := newTestGateway(gen)

	_, err := gw.AnalyzeCropImage(context.Background(), []byte{0xff, 0xd8, 0xff}, "image/jpeg", "", English)
	require.NoError(t, err)
	assert.True(t, strings.Contains(gen.parts[0].Text, "Farmer's context: None"))
}

func TestParseLanguage(t *testing.T) {
	for _, l := range Languages {
		got, ok := ParseLanguage(" " + strings.ToUpper(string(l)) + " ")
		assert.True(t, ok)
		assert.Equal(t, l, got)
		assert.NotEmpty(t, l.Name())
	}
	_, ok := ParseLanguage("xx")
	assert.False(t, ok)
	assert.Equal(t, "English", Language("xx").Name())
}
