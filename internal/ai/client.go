package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/sashabaranov/go-openai"
	"image"
	"image/png"
	"log/slog"
	"strings"
)

const (
	DefaultModel = openai.GPT3Dot5Turbo
	// MaxTokens keeps the feedback short enough to read during the outcome dwell.
	MaxTokens = 200
)

var ErrEmptyResponse = errors.NewSentinel("empty completion response")

type Config struct {
	APIKey string
	// BaseURL points the client at an OpenAI compatible endpoint. Empty means the OpenAI default.
	BaseURL string
	Model   string
}

type Client struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger.With("source", "ai.Client"),
	}
}

const gameMasterPrompt = `Eres un maestro de juego que proporciona retroalimentación a los jugadores en un juego de ` +
	`toma de decisiones. Basándote en la pregunta, la decisión del jugador (SÍ o NO) y el resultado (ÉXITO o FALLO), ` +
	`genera retroalimentación personalizada, atractiva y perspicaz que ayude al jugador a entender las consecuencias ` +
	`de su decisión. Mantén la retroalimentación breve, de una o dos frases. SIEMPRE responde en español, sin ` +
	`importar el idioma de la pregunta.`

func feedbackMessages(req models.FeedbackRequest) []openai.ChatCompletionMessage {
	decision := "NO"
	if req.Decision == models.DecisionYes {
		decision = "SÍ"
	}
	outcome := "FALLO"
	if req.Outcome == models.OutcomeSuccess {
		outcome = "ÉXITO"
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: gameMasterPrompt}, //nolint:exhaustruct // optional fields
		{ //nolint:exhaustruct // optional fields
			Role: openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("El apodo del jugador es %s.\nPregunta: %s\nDecisión del jugador: %s\nResultado: %s",
				req.Nickname, req.QuestionText, decision, outcome),
		},
	}
}

// GenerateFeedback asks the chat model for a short Spanish comment on the decision and its outcome.
func (c *Client) GenerateFeedback(ctx context.Context, req models.FeedbackRequest) (string, error) {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  feedbackMessages(req),
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion", slog.String("model", c.model))
	}
	if len(completion.Choices) == 0 {
		return "", errors.Wrap(ErrEmptyResponse, "no choices")
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", errors.Wrap(ErrEmptyResponse, "blank feedback")
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "feedback generated",
		slog.Int("total_tokens", completion.Usage.TotalTokens))
	return text, nil
}

// GenerateImage creates an outcome illustration with DALL·E and returns it decoded.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (image.Image, error) {
	response, err := c.client.CreateImage(ctx, openai.ImageRequest{ //nolint:exhaustruct // optional fields
		Model:          openai.CreateImageModelDallE3,
		Prompt:         prompt,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}
	if len(response.Data) == 0 {
		return nil, errors.Wrap(ErrEmptyResponse, "no image data")
	}
	imgBytes, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, errors.Wrap(err, "decode base64")
	}
	img, err := png.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, errors.Wrap(err, "decode png")
	}
	return img, nil
}
