package mock

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/ingestion"
)

// defaultPerTopic はPerTopic未指定時にトピックあたり生成する教材数
const defaultPerTopic = 2

// resourceKinds はトピックごとに生成する教材の種類
var resourceKinds = []string{"Lesson notes", "Revision sheet", "Worked examples", "Teacher's guide"}

// Scraper はトピックごとにテンプレートの教材（Markdown）を生成する
type Scraper struct{}

// NewScraper は新しいモックScraperを作成する
func NewScraper() *Scraper {
	return &Scraper{}
}

// Name は取得元の名前を返す
func (s *Scraper) Name() string {
	return string(ingestion.SourceMock)
}

// Scrape はトピックごとに PerTopic 件の教材を返す
func (s *Scraper) Scrape(ctx context.Context, req ingestion.ScrapeRequest) ([]*ingestion.Resource, error) {
	perTopic := req.PerTopic
	if perTopic <= 0 {
		perTopic = defaultPerTopic
	}
	if perTopic > len(resourceKinds) {
		perTopic = len(resourceKinds)
	}

	resources := make([]*ingestion.Resource, 0, len(req.Topics)*perTopic)
	for _, topic := range req.Topics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < perTopic; i++ {
			kind := resourceKinds[i]
			resources = append(resources, &ingestion.Resource{
				JobID:       req.JobID,
				Topic:       topic.Title,
				Title:       fmt.Sprintf("%s: %s", kind, topic.Title),
				URL:         resourceURL(req.Request, topic, i),
				Source:      ingestion.SourceMock,
				ContentType: "text/markdown",
				Content:     renderMaterial(req.Request, topic, kind),
			})
		}
	}
	return resources, nil
}

func resourceURL(req catalog.Request, topic catalog.Topic, n int) string {
	return fmt.Sprintf("mock://%s/class-%d/%s/%s/%d",
		strings.ToLower(req.Board),
		req.Class,
		url.PathEscape(slug(req.Subject)),
		url.PathEscape(slug(topic.Title)),
		n+1,
	)
}

func renderMaterial(req catalog.Request, topic catalog.Topic, kind string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s: %s\n\n", kind, topic.Title))
	sb.WriteString(fmt.Sprintf("%s is studied in the chapter %s of Class %d %s. ", topic.Title, req.Chapter, req.Class, req.Subject))
	sb.WriteString(fmt.Sprintf("This %s explains the idea, the vocabulary used in examinations and common mistakes.\n\n", strings.ToLower(kind)))

	sb.WriteString("## Key ideas\n\n")
	if len(topic.Keywords) == 0 {
		sb.WriteString(fmt.Sprintf("The central idea of %s should be understood through simple observations and examples.\n\n", topic.Title))
	}
	for _, kw := range topic.Keywords {
		sb.WriteString(fmt.Sprintf("- **%s**: an essential term for %s. Remember how %s connects to %s.\n", kw, topic.Title, kw, req.Chapter))
	}
	if len(topic.Keywords) > 0 {
		sb.WriteString("\n")
	}

	if len(topic.Subtopics) > 0 {
		sb.WriteString("## Subtopics\n\n")
		for _, st := range topic.Subtopics {
			sb.WriteString(fmt.Sprintf("### %s\n\n%s is a part of %s. Learn its definition and one application.\n\n", st, st, topic.Title))
		}
	}

	sb.WriteString("## Exam tips\n\n")
	sb.WriteString(fmt.Sprintf("Questions on %s often ask for a definition, a labelled diagram or a short reasoning answer. ", topic.Title))
	sb.WriteString("Write key terms exactly and support explanations with an example.\n")
	return sb.String()
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

var _ ingestion.Scraper = (*Scraper)(nil)
