package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Default()
	require.NoError(t, err)
	return c
}

func TestDefault_LoadsEmbeddedCatalog(t *testing.T) {
	c := mustCatalog(t)

	boards := c.ListBoards()
	require.NotEmpty(t, boards)
	assert.Equal(t, "CBSE", boards[0].Code)

	classes := c.ListClasses("cbse")
	assert.Equal(t, 1, classes[0])
	assert.Equal(t, 12, classes[len(classes)-1])
}

func TestCatalog_ListSubjectsFiltersByBoardAndClass(t *testing.T) {
	c := mustCatalog(t)

	names := func(subjects []Subject) []string {
		out := make([]string, 0, len(subjects))
		for _, s := range subjects {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Contains(t, names(c.ListSubjects("CBSE", 10)), "Science")
	assert.NotContains(t, names(c.ListSubjects("CBSE", 12)), "Science")
	assert.Contains(t, names(c.ListSubjects("ICSE", 11)), "Computer Science")
	assert.NotContains(t, names(c.ListSubjects("STATE", 11)), "Computer Science")
}

func TestCatalog_ListChaptersRespectsBoardRestriction(t *testing.T) {
	c := mustCatalog(t)

	assert.Len(t, c.ListChapters("CBSE", 8, "social science"), 1)
	assert.Empty(t, c.ListChapters("ICSE", 8, "social science"))
}

func TestParse_RejectsIncompleteChapter(t *testing.T) {
	_, err := Parse([]byte("boards: [{code: X, name: X}]\nchapters: [{class: 1, title: t}]\n"))
	require.Error(t, err)
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(mustCatalog(t))

	t.Run("正規化して受理", func(t *testing.T) {
		req, err := v.Validate(Request{
			Class:   10,
			Board:   "central board of secondary education",
			Subject: "science",
			Chapter: "  Life   Processes ",
		})
		require.NoError(t, err)
		assert.Equal(t, "CBSE", req.Board)
		assert.Equal(t, "Science", req.Subject)
		assert.Equal(t, "Life Processes", req.Chapter)
	})

	t.Run("構造エラーはJSON名で報告", func(t *testing.T) {
		_, err := v.Validate(Request{Class: 13, Board: "CBSE", Subject: "Science", Chapter: "   "})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		fields := map[string]string{}
		for _, f := range verr.Fields {
			fields[f.Field] = f.Message
		}
		assert.Contains(t, fields, "class")
		assert.Equal(t, "this field cannot be blank", fields["chapter"])
	})

	t.Run("未知の委員会", func(t *testing.T) {
		_, err := v.Validate(Request{Class: 10, Board: "XYZ", Subject: "Science", Chapter: "Motion"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "board", verr.Fields[0].Field)
	})

	t.Run("学年で提供されない教科", func(t *testing.T) {
		_, err := v.Validate(Request{Class: 3, Board: "CBSE", Subject: "Physics", Chapter: "Motion"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "subject", verr.Fields[0].Field)
	})
}

func TestRequest_Wants(t *testing.T) {
	no := false
	assert.True(t, Request{}.WantsExamples())
	assert.True(t, Request{}.WantsQuestions())
	assert.False(t, Request{IncludeExamples: &no}.WantsExamples())
	assert.False(t, Request{IncludeQuestions: &no}.WantsQuestions())
}

func TestSyllabusProvider_FetchSyllabus(t *testing.T) {
	p := NewSyllabusProvider(mustCatalog(t))
	ctx := context.Background()

	t.Run("カタログの単元", func(t *testing.T) {
		s, err := p.FetchSyllabus(ctx, Request{Class: 10, Board: "CBSE", Subject: "Mathematics", Chapter: "real numbers"})
		require.NoError(t, err)
		assert.False(t, s.Generated)
		assert.Equal(t, "Central Board of Secondary Education", s.BoardName)
		require.Len(t, s.Topics, 4)
		assert.Equal(t, "Euclid's Division Lemma", s.Topics[0].Title)
	})

	t.Run("未登録の単元は汎用シラバス", func(t *testing.T) {
		s, err := p.FetchSyllabus(ctx, Request{Class: 7, Board: "ICSE", Subject: "Mathematics", Chapter: "Data Handling"})
		require.NoError(t, err)
		assert.True(t, s.Generated)
		require.NotEmpty(t, s.Topics)
		assert.Equal(t, "Introduction to Data Handling", s.Topics[0].Title)
	})

	t.Run("キャンセル済みコンテキスト", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.FetchSyllabus(cctx, Request{Class: 10, Board: "CBSE", Subject: "Science", Chapter: "Motion"})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtractTopics(t *testing.T) {
	s := &Syllabus{Topics: []Topic{
		{Title: "  Speed   and Velocity ", Keywords: []string{"speed"}},
		{Title: ""},
		{Title: "speed and velocity", Keywords: []string{"Speed", "velocity"}},
		{Title: "Acceleration"},
		{Title: "Graphs"},
	}}

	topics := ExtractTopics(s, 2)
	require.Len(t, topics, 2)
	assert.Equal(t, "Speed and Velocity", topics[0].Title)
	assert.Equal(t, []string{"speed", "velocity"}, topics[0].Keywords)
	assert.Equal(t, "Acceleration", topics[1].Title)

	assert.Len(t, ExtractTopics(s, 0), 3)
	assert.Nil(t, ExtractTopics(nil, 3))
}
