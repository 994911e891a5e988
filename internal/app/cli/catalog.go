package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/study-notes/internal/core/catalog"
)

// CatalogListAction はカタログを表示するコマンドのアクション
// board と class を指定すると教科、さらに subject を指定すると単元を表示する
func CatalogListAction(_ context.Context, cmd *cli.Command) error {
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("カタログの読み込みに失敗: %w", err)
	}
	return printCatalog(os.Stdout, cat, cmd.String("board"), cmd.Int("class"), cmd.String("subject"))
}

func printCatalog(w io.Writer, cat *catalog.Catalog, board string, class int, subject string) error {
	switch {
	case board == "":
		for _, b := range cat.ListBoards() {
			fmt.Fprintf(w, "%-8s %s (classes: %s)\n", b.Code, b.Name, joinInts(cat.ListClasses(b.Code)))
		}
	case class == 0:
		fmt.Fprintf(w, "classes: %s\n", joinInts(cat.ListClasses(board)))
	case subject == "":
		subjects := cat.ListSubjects(board, class)
		if len(subjects) == 0 {
			return fmt.Errorf("教科が見つかりません: board=%s class=%d", board, class)
		}
		for _, s := range subjects {
			fmt.Fprintln(w, s.Name)
		}
	default:
		chapters := cat.ListChapters(board, class, subject)
		if len(chapters) == 0 {
			return fmt.Errorf("単元が見つかりません: board=%s class=%d subject=%s", board, class, subject)
		}
		for _, ch := range chapters {
			titles := make([]string, 0, len(ch.Topics))
			for _, t := range ch.Topics {
				titles = append(titles, t.Title)
			}
			fmt.Fprintf(w, "%s\n  %s\n", ch.Title, strings.Join(titles, "\n  "))
		}
	}
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ",")
}
