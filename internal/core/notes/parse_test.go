package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"素のJSON", `{"a": 1}`, `{"a": 1}`},
		{"コードフェンス", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"前後の文章", "Sure! {\"a\": {\"b\": 2}} Hope this helps.", `{"a": {"b": 2}}`},
		{"JSONなし", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.input))
		})
	}
}

func TestDecodeJSON_WrapsError(t *testing.T) {
	var p overviewPayload
	err := decodeJSON("not json", &p)
	assert.ErrorIs(t, err, ErrInvalidLLMOutput)
}

func TestTopicPayload_Validate(t *testing.T) {
	t.Run("空のページ", func(t *testing.T) {
		p := &topicPayload{}
		assert.Error(t, p.validate())
	})

	t.Run("未知の問題形式", func(t *testing.T) {
		p := &topicPayload{Definition: "d", Questions: []Question{{Kind: "essay"}}}
		assert.Error(t, p.validate())
	})

	t.Run("形式の補完", func(t *testing.T) {
		p := &topicPayload{Explanation: "e", Questions: []Question{{Prompt: "q"}}}
		require.NoError(t, p.validate())
		assert.Equal(t, QuestionShort, p.Questions[0].Kind)
	})
}

func TestSummaryPayload_Validate(t *testing.T) {
	assert.Error(t, (&summaryPayload{Summary: "  "}).validate())
	assert.NoError(t, (&summaryPayload{Summary: "ok"}).validate())
}
