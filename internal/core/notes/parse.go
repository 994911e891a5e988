package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLLMOutput はLLMの出力を期待するJSONとして解釈できない場合に返される
var ErrInvalidLLMOutput = errors.New("invalid llm output")

// extractJSON はコードフェンスや前後の文章を取り除き、JSONオブジェクト部分を返す
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// decodeJSON はLLM出力を out にデコードする
func decodeJSON(content string, out any) error {
	if err := json.Unmarshal([]byte(extractJSON(content)), out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLLMOutput, err)
	}
	return nil
}

type overviewPayload struct {
	Overview string `json:"overview"`
}

type topicPayload struct {
	Definition  string     `json:"definition"`
	Explanation string     `json:"explanation"`
	KeyPoints   []string   `json:"keyPoints"`
	Examples    []Example  `json:"examples"`
	Questions   []Question `json:"questions"`
}

type summaryPayload struct {
	Summary  string    `json:"summary"`
	KeyTerms []KeyTerm `json:"keyTerms"`
}

// validator はデコード後の必須項目チェックを持つペイロード
// reset は再デコード前に前回の値を消す
type validator interface {
	validate() error
	reset()
}

func (p *overviewPayload) reset() { *p = overviewPayload{} }
func (p *topicPayload) reset() { *p = topicPayload{} }
func (p *summaryPayload) reset() { *p = summaryPayload{} }

func (p *overviewPayload) validate() error {
	if strings.TrimSpace(p.Overview) == "" {
		return errors.New("overview is empty")
	}
	return nil
}

func (p *topicPayload) validate() error {
	if strings.TrimSpace(p.Definition) == "" && strings.TrimSpace(p.Explanation) == "" {
		return errors.New("definition and explanation are both empty")
	}
	for i, q := range p.Questions {
		switch q.Kind {
		case QuestionMCQ, QuestionShort, QuestionLong:
		case "":
			p.Questions[i].Kind = QuestionShort
		default:
			return fmt.Errorf("unknown question kind %q", q.Kind)
		}
	}
	return nil
}

func (p *summaryPayload) validate() error {
	if strings.TrimSpace(p.Summary) == "" {
		return errors.New("summary is empty")
	}
	return nil
}
