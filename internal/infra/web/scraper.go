package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/ingestion"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent はリクエストに付与するUser-Agent
	DefaultUserAgent = "study-notes-bot/1.0"
	// DefaultTimeout は1リクエストのタイムアウト
	DefaultTimeout = 15 * time.Second
	// DefaultRequestsPerSecond は1秒あたりのリクエスト数
	DefaultRequestsPerSecond = 2.0

	maxBodyBytes    = 2 << 20
	maxContentChars = 20000
)

// ErrNoTemplates はURLテンプレートが未設定の場合に返される
var ErrNoTemplates = errors.New("no url templates configured")

// Scraper はURLテンプレートから教材ページを取得し、本文をMarkdownに変換する
//
// テンプレートでは {board} {class} {subject} {chapter} {topic} {query} を置換する
type Scraper struct {
	templates []string
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

type scraperOptions struct {
	client            *http.Client
	userAgent         string
	timeout           time.Duration
	requestsPerSecond float64
	logger            *slog.Logger
}

// Option はScraperの設定オプション
type Option func(*scraperOptions)

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(client *http.Client) Option {
	return func(o *scraperOptions) {
		o.client = client
	}
}

// WithUserAgent はUser-Agentを設定する
func WithUserAgent(ua string) Option {
	return func(o *scraperOptions) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithTimeout はリクエストのタイムアウトを設定する
func WithTimeout(timeout time.Duration) Option {
	return func(o *scraperOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithRequestsPerSecond は1秒あたりのリクエスト数を設定する（0以下で無制限）
func WithRequestsPerSecond(rps float64) Option {
	return func(o *scraperOptions) {
		o.requestsPerSecond = rps
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(o *scraperOptions) {
		o.logger = logger
	}
}

// NewScraper は新しいScraperを作成する
func NewScraper(templates []string, opts ...Option) (*Scraper, error) {
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}

	options := scraperOptions{
		userAgent:         DefaultUserAgent,
		timeout:           DefaultTimeout,
		requestsPerSecond: DefaultRequestsPerSecond,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.client == nil {
		options.client = &http.Client{Timeout: options.timeout}
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	limit := rate.Inf
	if options.requestsPerSecond > 0 {
		limit = rate.Limit(options.requestsPerSecond)
	}

	return &Scraper{
		templates: templates,
		client:    options.client,
		userAgent: options.userAgent,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    options.logger,
	}, nil
}

// Name は取得元の名前を返す
func (s *Scraper) Name() string {
	return string(ingestion.SourceWeb)
}

// Scrape はトピックごとにテンプレートのURLを順に取得する
// 個々のページの失敗はログのみで、全ページ失敗した場合にエラーを返す
func (s *Scraper) Scrape(ctx context.Context, req ingestion.ScrapeRequest) ([]*ingestion.Resource, error) {
	var resources []*ingestion.Resource
	var errs []error

	for _, topic := range req.Topics {
		fetched := 0
		for _, tmpl := range s.templates {
			if req.PerTopic > 0 && fetched >= req.PerTopic {
				break
			}
			pageURL := ExpandTemplate(tmpl, req.Request, topic)

			r, err := s.fetch(ctx, pageURL)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				s.logger.Warn("ページの取得に失敗しました", "url", pageURL, "topic", topic.Title, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", pageURL, err))
				continue
			}
			r.JobID = req.JobID
			r.Topic = topic.Title
			resources = append(resources, r)
			fetched++
		}
	}

	if len(resources) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return resources, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*ingestion.Resource, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return &ingestion.Resource{
			Title:       pageURL,
			URL:         pageURL,
			Source:      ingestion.SourceWeb,
			ContentType: "text/plain",
			Content:     truncate(string(data)),
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	title, content := ExtractContent(doc)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("page has no readable text")
	}
	if title == "" {
		title = pageURL
	}

	return &ingestion.Resource{
		Title:       title,
		URL:         pageURL,
		Source:      ingestion.SourceWeb,
		ContentType: "text/markdown",
		Content:     truncate(content),
	}, nil
}

const blockSelector = "h1, h2, h3, h4, p, li, pre"

// ExtractContent はHTMLから表題と本文（見出し付きMarkdown）を取り出す
func ExtractContent(doc *goquery.Document) (string, string) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var sb strings.Builder
	seen := make(map[string]struct{})
	root.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// 外側のブロックが本文をまとめて出力済み
		if sel.ParentsUntilSelection(root).Filter(blockSelector).Length() > 0 {
			return
		}
		text := collapseSpaces(sel.Text())
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		switch goquery.NodeName(sel) {
		case "h1":
			sb.WriteString("# " + text + "\n\n")
		case "h2":
			sb.WriteString("## " + text + "\n\n")
		case "h3", "h4":
			sb.WriteString("### " + text + "\n\n")
		case "li":
			sb.WriteString("- " + text + "\n")
		default:
			sb.WriteString(text + "\n\n")
		}
	})
	return title, strings.TrimSpace(sb.String())
}

// ExpandTemplate はURLテンプレートのプレースホルダを置換する
func ExpandTemplate(tmpl string, req catalog.Request, topic catalog.Topic) string {
	query := strings.Join([]string{topic.Title, req.Chapter, req.Subject, "class " + strconv.Itoa(req.Class)}, " ")
	replacer := strings.NewReplacer(
		"{board}", url.PathEscape(strings.ToLower(req.Board)),
		"{class}", strconv.Itoa(req.Class),
		"{subject}", url.PathEscape(req.Subject),
		"{chapter}", url.PathEscape(req.Chapter),
		"{topic}", url.PathEscape(topic.Title),
		"{query}", url.QueryEscape(query),
	)
	return replacer.Replace(tmpl)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxContentChars {
		return s
	}
	return string(runes[:maxContentChars])
}

var _ ingestion.Scraper = (*Scraper)(nil)
