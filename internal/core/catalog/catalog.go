package catalog

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/samber/mo"
	"gopkg.in/yaml.v3"
)

//go:embed syllabus.yaml
var defaultSyllabusYAML []byte

// Catalog は委員会・学年・教科・単元のマスタデータ
type Catalog struct {
	Boards   []Board   `yaml:"boards"`
	Subjects []Subject `yaml:"subjects"`
	Chapters []Chapter `yaml:"chapters"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default は埋め込みYAMLから読み込んだカタログを返す
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultSyllabusYAML)
	})
	return defaultCatalog, defaultErr
}

// Parse はYAMLからカタログを構築する
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse syllabus catalog: %w", err)
	}
	if len(c.Boards) == 0 {
		return nil, fmt.Errorf("syllabus catalog has no boards")
	}
	for i, ch := range c.Chapters {
		if ch.Title == "" || ch.Subject == "" || ch.Class == 0 {
			return nil, fmt.Errorf("chapter #%d is missing class, subject or title", i)
		}
	}
	return &c, nil
}

// ListBoards は全委員会を返す
func (c *Catalog) ListBoards() []Board {
	return slices.Clone(c.Boards)
}

// ListClasses は指定委員会で教科が1つ以上提供される学年を昇順で返す
func (c *Catalog) ListClasses(board string) []int {
	code := c.boardCode(board)
	seen := make(map[int]struct{})
	for _, s := range c.Subjects {
		if !offeredOnBoard(s.Boards, code) {
			continue
		}
		for _, cl := range s.Classes {
			seen[cl] = struct{}{}
		}
	}
	classes := make([]int, 0, len(seen))
	for cl := range seen {
		classes = append(classes, cl)
	}
	sort.Ints(classes)
	return classes
}

// ListSubjects は委員会・学年で提供される教科を返す
func (c *Catalog) ListSubjects(board string, class int) []Subject {
	code := c.boardCode(board)
	var subjects []Subject
	for _, s := range c.Subjects {
		if offeredOnBoard(s.Boards, code) && slices.Contains(s.Classes, class) {
			subjects = append(subjects, s)
		}
	}
	return subjects
}

// ListChapters はカタログに登録済みの単元を返す
func (c *Catalog) ListChapters(board string, class int, subject string) []Chapter {
	code := c.boardCode(board)
	var chapters []Chapter
	for _, ch := range c.Chapters {
		if ch.Class == class && strings.EqualFold(ch.Subject, subject) && offeredOnBoard(ch.Boards, code) {
			chapters = append(chapters, ch)
		}
	}
	return chapters
}

// FindBoard はコードまたは名称（大文字小文字を区別しない）で委員会を探す
func (c *Catalog) FindBoard(board string) mo.Option[Board] {
	board = strings.TrimSpace(board)
	for _, b := range c.Boards {
		if strings.EqualFold(b.Code, board) || strings.EqualFold(b.Name, board) {
			return mo.Some(b)
		}
	}
	return mo.None[Board]()
}

// FindSubject は委員会・学年で提供される教科を名称で探す
func (c *Catalog) FindSubject(board string, class int, subject string) mo.Option[Subject] {
	subject = strings.TrimSpace(subject)
	for _, s := range c.ListSubjects(board, class) {
		if strings.EqualFold(s.Name, subject) {
			return mo.Some(s)
		}
	}
	return mo.None[Subject]()
}

// FindChapter は単元をタイトルで探す
func (c *Catalog) FindChapter(board string, class int, subject, title string) mo.Option[Chapter] {
	title = normalizeTitle(title)
	for _, ch := range c.ListChapters(board, class, subject) {
		if strings.EqualFold(ch.Title, title) {
			return mo.Some(ch)
		}
	}
	return mo.None[Chapter]()
}

func (c *Catalog) boardCode(board string) string {
	if b, ok := c.FindBoard(board).Get(); ok {
		return b.Code
	}
	return strings.ToUpper(strings.TrimSpace(board))
}

func offeredOnBoard(boards []string, code string) bool {
	if len(boards) == 0 {
		return true
	}
	for _, b := range boards {
		if strings.EqualFold(b, code) {
			return true
		}
	}
	return false
}
