package catalog

// Board は教育委員会（カリキュラム提供元）を表す
type Board struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

// Subject は教科と、その教科が提供される学年・委員会を表す
type Subject struct {
	Name    string   `yaml:"name" json:"name"`
	Classes []int    `yaml:"classes" json:"classes"`
	Boards  []string `yaml:"boards,omitempty" json:"boards,omitempty"` // 空の場合は全委員会
}

// Chapter は単元とそのトピック一覧を表す
type Chapter struct {
	Class   int      `yaml:"class" json:"class"`
	Subject string   `yaml:"subject" json:"subject"`
	Title   string   `yaml:"title" json:"title"`
	Boards  []string `yaml:"boards,omitempty" json:"boards,omitempty"`
	Topics  []Topic  `yaml:"topics" json:"topics"`
}

// Topic はシラバス上の1トピック
type Topic struct {
	Title     string   `yaml:"title" json:"title"`
	Keywords  []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Subtopics []string `yaml:"subtopics,omitempty" json:"subtopics,omitempty"`
}

// Request はノート生成のリクエスト
type Request struct {
	Class            int    `json:"class" validate:"required,min=1,max=12"`
	Board            string `json:"board" validate:"required,notblank,max=64"`
	Subject          string `json:"subject" validate:"required,notblank,max=128"`
	Chapter          string `json:"chapter" validate:"required,notblank,max=256"`
	MaxTopics        int    `json:"maxTopics,omitempty" validate:"omitempty,min=1,max=20"`
	IncludeExamples  *bool  `json:"includeExamples,omitempty"`
	IncludeQuestions *bool  `json:"includeQuestions,omitempty"`
}

// WantsExamples は例題を生成するかを返す（未指定は true）
func (r Request) WantsExamples() bool {
	return r.IncludeExamples == nil || *r.IncludeExamples
}

// WantsQuestions は練習問題を生成するかを返す（未指定は true）
func (r Request) WantsQuestions() bool {
	return r.IncludeQuestions == nil || *r.IncludeQuestions
}

// Syllabus は単元のシラバス
type Syllabus struct {
	Request   Request `json:"request"`
	BoardName string  `json:"boardName"`
	Topics    []Topic `json:"topics"`
	// Generated はカタログに単元が無く汎用シラバスを生成した場合に true
	Generated bool `json:"generated"`
}
