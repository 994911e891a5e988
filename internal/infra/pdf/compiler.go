package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/jinford/study-notes/internal/core/notes"
)

const (
	defaultFont  = "Helvetica"
	lineHeight   = 5.5
	headingSpace = 3.0
)

// Compiler は学習ノートをPDFに変換する
type Compiler struct {
	font       string
	pageSize   string
	author     string
	compress   bool
	translator func(string) string
}

var _ notes.Compiler = (*Compiler)(nil)

// CompilerOption はCompilerの設定オプション
type CompilerOption func(*Compiler)

// WithPageSize は用紙サイズ（A4, Letter など）を設定する
func WithPageSize(size string) CompilerOption {
	return func(c *Compiler) {
		if size != "" {
			c.pageSize = size
		}
	}
}

// WithAuthor はPDFの作成者メタデータを設定する
func WithAuthor(author string) CompilerOption {
	return func(c *Compiler) {
		c.author = author
	}
}

// WithCompression はページ内容の圧縮を設定する
func WithCompression(compress bool) CompilerOption {
	return func(c *Compiler) {
		c.compress = compress
	}
}

// NewCompiler は新しいCompilerを作成する
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		font:     defaultFont,
		pageSize: "A4",
		author:   "study-notes",
		compress: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extension は成果物の拡張子を返す
func (c *Compiler) Extension() string {
	return ".pdf"
}

// Compile はノートをPDFバイト列に変換する
func (c *Compiler) Compile(ctx context.Context, n *notes.Notes) ([]byte, error) {
	if n == nil {
		return nil, errors.New("notes is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "mm", c.pageSize, "")
	doc.SetCompression(c.compress)
	doc.SetAutoPageBreak(true, 15)
	doc.SetMargins(18, 18, 18)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	w := &writer{pdf: doc, font: c.font, tr: tr}
	doc.SetTitle(tr(n.Title), false)
	doc.SetAuthor(tr(c.author), false)
	doc.SetCreator("study-notes", false)
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont(c.font, "I", 8)
		doc.SetTextColor(120, 120, 120)
		doc.CellFormat(0, 6, tr(n.Title)+"  |  "+strconv.Itoa(doc.PageNo()), "", 0, "C", false, 0, "")
	})

	doc.AddPage()
	w.title(n)

	if n.Overview != "" {
		w.heading("Overview")
		w.paragraph(n.Overview)
	}

	for i, page := range n.Topics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w.topic(i+1, page)
	}

	if n.Summary != "" {
		w.heading("Summary")
		w.paragraph(n.Summary)
	}

	if len(n.KeyTerms) > 0 {
		w.heading("Key terms")
		for _, kt := range n.KeyTerms {
			w.labelled(kt.Term, kt.Meaning)
		}
	}

	if len(n.References) > 0 {
		w.heading("References")
		for _, ref := range n.References {
			w.bullet(referenceText(ref))
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// writer はfpdfへの書き込みを見出し・段落・箇条書きの単位でまとめる
type writer struct {
	pdf  *fpdf.Fpdf
	font string
	tr   func(string) string
}

func (w *writer) title(n *notes.Notes) {
	w.pdf.SetFont(w.font, "B", 18)
	w.pdf.SetTextColor(20, 40, 90)
	w.pdf.MultiCell(0, 9, w.tr(n.Title), "", "L", false)

	board := n.BoardName
	if board == "" {
		board = n.Request.Board
	}
	w.pdf.SetFont(w.font, "I", 10)
	w.pdf.SetTextColor(90, 90, 90)
	w.pdf.MultiCell(0, lineHeight, w.tr(fmt.Sprintf("Class %d  |  %s  |  %s", n.Request.Class, board, n.Request.Subject)), "", "L", false)
	w.pdf.Ln(headingSpace)
}

func (w *writer) heading(text string) {
	w.pdf.Ln(headingSpace)
	w.pdf.SetFont(w.font, "B", 14)
	w.pdf.SetTextColor(20, 40, 90)
	w.pdf.MultiCell(0, 7, w.tr(text), "B", "L", false)
	w.pdf.Ln(1.5)
}

func (w *writer) subheading(text string) {
	w.pdf.Ln(1.5)
	w.pdf.SetFont(w.font, "B", 11.5)
	w.pdf.SetTextColor(40, 40, 40)
	w.pdf.MultiCell(0, 6, w.tr(text), "", "L", false)
}

func (w *writer) paragraph(text string) {
	w.pdf.SetFont(w.font, "", 10.5)
	w.pdf.SetTextColor(0, 0, 0)
	for _, p := range strings.Split(strings.TrimSpace(text), "\n\n") {
		w.pdf.MultiCell(0, lineHeight, w.tr(strings.TrimSpace(p)), "", "L", false)
		w.pdf.Ln(1)
	}
}

func (w *writer) labelled(label, text string) {
	w.pdf.SetFont(w.font, "B", 10.5)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.Write(lineHeight, w.tr(label+". "))
	w.pdf.SetFont(w.font, "", 10.5)
	w.pdf.Write(lineHeight, w.tr(text))
	w.pdf.Ln(lineHeight + 1)
}

func (w *writer) bullet(text string) {
	w.pdf.SetFont(w.font, "", 10.5)
	w.pdf.SetTextColor(0, 0, 0)
	left, _, _, _ := w.pdf.GetMargins()
	w.pdf.SetX(left + 3)
	w.pdf.MultiCell(0, lineHeight, w.tr("- "+text), "", "L", false)
}

func (w *writer) topic(index int, page *notes.TopicPage) {
	w.heading(fmt.Sprintf("%d. %s", index, page.Topic))

	if page.Definition != "" {
		w.labelled("Definition", page.Definition)
	}
	if page.Explanation != "" {
		w.paragraph(page.Explanation)
	}

	if len(page.KeyPoints) > 0 {
		w.subheading("Key points")
		for _, kp := range page.KeyPoints {
			w.bullet(kp)
		}
	}

	if len(page.Examples) > 0 {
		w.subheading("Examples")
		for _, ex := range page.Examples {
			w.labelled(ex.Title, ex.Problem)
			w.labelled("Solution", ex.Solution)
		}
	}

	if len(page.Questions) > 0 {
		w.subheading("Practice questions")
		for i, q := range page.Questions {
			w.labelled(fmt.Sprintf("Q%d (%s)", i+1, q.Kind), q.Prompt)
			for j, opt := range q.Options {
				w.bullet(fmt.Sprintf("%c) %s", 'a'+j, opt))
			}
		}
		w.subheading("Answers")
		for i, q := range page.Questions {
			w.labelled(fmt.Sprintf("Q%d", i+1), q.Answer)
		}
	}

	if len(page.Sources) > 0 {
		w.subheading("Sources")
		for _, ref := range page.Sources {
			w.bullet(referenceText(ref))
		}
	}
}

func referenceText(ref notes.Reference) string {
	switch {
	case ref.Title != "" && ref.URL != "":
		return ref.Title + " (" + ref.URL + ")"
	case ref.URL != "":
		return ref.URL
	default:
		return ref.Title
	}
}
