package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	// MaxRetries はレート制限エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second

	// JSONParseMaxRetries はJSON解析エラー時の最大リトライ回数
	JSONParseMaxRetries = 1
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

	// ErrInvalidResponseFormat は不正なレスポンス形式のエラー
	ErrInvalidResponseFormat = errors.New("invalid response format")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Client は OpenAI の Chat Completions API でノートの各セクションを生成する
type Client struct {
	api     openai.Client
	opts    clientOptions
	limiter *rate.Limiter
}

type clientOptions struct {
	model             string
	timeout           time.Duration
	baseBackoff       time.Duration
	requestsPerMinute int
	requestOptions    []option.RequestOption
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithModel はモデル名を上書きする
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithTimeout はAPIコールのタイムアウトを設定する
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithBackoff はリトライ時の基底待機時間を設定する
func WithBackoff(base time.Duration) ClientOption {
	return func(o *clientOptions) {
		if base > 0 {
			o.baseBackoff = base
		}
	}
}

// WithRequestsPerMinute は1分あたりのリクエスト数を制限する（0以下で無制限）
func WithRequestsPerMinute(rpm int) ClientOption {
	return func(o *clientOptions) {
		o.requestsPerMinute = rpm
	}
}

// WithBaseURL は接続先を差し替える（互換APIやテスト用）
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.requestOptions = append(o.requestOptions, option.WithBaseURL(url))
	}
}

// NewClient はAPIキーを指定して Client を作成する
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	o := clientOptions{
		model:       DefaultModel,
		timeout:     DefaultTimeout,
		baseBackoff: BaseBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}

	// SDK側のリトライは無効にして429だけをここで待ち直す
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, o.requestOptions...)

	return &Client{
		api:     openai.NewClient(reqOpts...),
		opts:    o,
		limiter: newLimiter(o.requestsPerMinute),
	}, nil
}

// newLimiter は1分あたりのリクエスト数から制限器を作成する
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.opts.model
}

// systemPrompt は全セクション共通の指示
const systemPrompt = "You write accurate, exam-oriented study notes for school students. Follow the requested output format exactly."

// GenerateCompletion はプロンプトを送信して応答を返す
// JSON形式を要求した場合、解析できない応答は JSONParseMaxRetries 回まで再生成する
func (c *Client) GenerateCompletion(ctx context.Context, req notes.CompletionRequest) (notes.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	params := c.chatParams(req)
	wantJSON := req.ResponseFormat == "json"

	for attempt := 0; ; attempt++ {
		resp, err := c.complete(ctx, params)
		if err != nil {
			return notes.CompletionResponse{}, err
		}
		if wantJSON && !json.Valid([]byte(resp.Content)) {
			if attempt >= JSONParseMaxRetries {
				return notes.CompletionResponse{}, fmt.Errorf("%w: %s returned non-JSON content %d times", ErrInvalidResponseFormat, req.PromptID, attempt+1)
			}
			continue
		}
		resp.PromptVersion = notes.PromptVersion
		return resp, nil
	}
}

func (c *Client) chatParams(req notes.CompletionRequest) openai.ChatCompletionNewParams {
	model := c.opts.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat == "json" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}
	return params
}

// complete は429の間だけ指数バックオフで再送する
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (notes.CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return notes.CompletionResponse{}, ctx.Err()
			case <-timer.C:
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return notes.CompletionResponse{}, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		completion, err := c.api.Chat.Completions.New(ctx, params)
		if isRateLimitError(err) {
			lastErr = err
			continue
		}
		if err != nil {
			return notes.CompletionResponse{}, fmt.Errorf("chat completion failed: %w", err)
		}
		if len(completion.Choices) == 0 {
			return notes.CompletionResponse{}, errors.New("chat completion returned no choices")
		}
		return notes.CompletionResponse{
			Content:    completion.Choices[0].Message.Content,
			TokensUsed: int(completion.Usage.TotalTokens),
			Model:      string(completion.Model),
		}, nil
	}
	return notes.CompletionResponse{}, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

// backoff は baseBackoff * 2^(attempt-1) を MaxBackoff で頭打ちにする
func (c *Client) backoff(attempt int) time.Duration {
	return min(c.opts.baseBackoff<<(attempt-1), MaxBackoff)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

var _ notes.Client = (*Client)(nil)
