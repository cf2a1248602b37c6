package proposal

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/ai"
	"github.com/spigell/rfp-intake/internal/logger"
	"github.com/spigell/rfp-intake/internal/models"
)

const (
	defaultMaxLogLength = 200
	defaultModelScore   = 50
	defaultFeedback     = "Proposal processed"
)

//go:embed prompts/extract.md
var extractPrompt string

// ModelExtractor asks a language model for the structured proposal.
type ModelExtractor struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewModelExtractor(generator ai.Generator, logger *zap.Logger, maxLogLength int) *ModelExtractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelExtractor{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

func (m *ModelExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	if m.generator == nil {
		return nil, errors.New("ai generator is not configured")
	}

	message := "PROPOSAL TEXT:\n" + text

	m.logger.Debug("proposal extraction request",
		zap.String(logger.FieldModel, m.generator.Model()),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", logger.TruncateForLog(message, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, extractPrompt, message)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("proposal extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, m.maxLogLen)),
	)

	return parseExtraction(raw)
}

type extractionPayload struct {
	Total     *float64          `mapstructure:"total"`
	LineItems []models.LineItem `mapstructure:"line_items"`
	Terms     *string           `mapstructure:"terms"`
	Score     *float64          `mapstructure:"score"`
	Feedback  string            `mapstructure:"feedback"`
}

func parseExtraction(raw string) (*Extraction, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(ai.ExtractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	if data == nil {
		return nil, errors.New("model response is not a JSON object")
	}

	var payload extractionPayload
	if err := weakDecode(data, &payload); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	score := float64(defaultModelScore)
	if payload.Score != nil && !math.IsNaN(*payload.Score) {
		score = *payload.Score
	}

	total := payload.Total
	if total != nil && (*total == 0 || math.IsNaN(*total)) {
		total = nil
	}

	terms := payload.Terms
	if terms != nil && strings.TrimSpace(*terms) == "" {
		terms = nil
	}

	feedback := strings.TrimSpace(payload.Feedback)
	if feedback == "" {
		feedback = defaultFeedback
	}

	items := payload.LineItems
	if items == nil {
		items = []models.LineItem{}
	}

	data["method"] = MethodModel

	return &Extraction{
		Total:     total,
		LineItems: items,
		Terms:     terms,
		Score:     int(math.Round(clampScore(score))),
		Feedback:  feedback,
		Method:    MethodModel,
		Payload:   data,
	}, nil
}

// weakDecode decodes loosely typed model output: numeric strings, money
// strings with "$" and thousands separators, and numbers given as strings.
func weakDecode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       moneyHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func moneyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		s := strings.TrimSpace(thousandsString.Replace(data.(string)))
		if strings.EqualFold(s, "null") {
			return "", nil
		}
		return s, nil
	default:
		return data, nil
	}
}
