package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/study-notes/internal/app/cli"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 設定読み込み前のログは JSON で標準エラーへ
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "study-notes",
		Usage: "学年・教育委員会・教科・単元から学習ノートPDFを生成するシステム",
		Commands: []*cli.Command{
			{
				Name:  "notes",
				Usage: "ノート生成コマンド",
				Commands: []*cli.Command{
					{
						Name:  "generate",
						Usage: "ノートを生成してPDFを出力（完了まで待機）",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:     "class",
								Usage:    "学年（1〜12）",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "board",
								Usage:    "教育委員会（例: CBSE）",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "subject",
								Usage:    "教科",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "chapter",
								Usage:    "単元",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "max-topics",
								Usage: "トピック数の上限（0 の場合は設定値）",
							},
							&cli.BoolFlag{
								Name:  "no-examples",
								Usage: "例題を含めない",
							},
							&cli.BoolFlag{
								Name:  "no-questions",
								Usage: "練習問題を含めない",
							},
							&cli.StringFlag{
								Name:  "markdown",
								Usage: "Markdown版の出力先ファイルパス",
							},
						},
						Action: appcli.NotesGenerateAction,
					},
				},
			},
			{
				Name:  "job",
				Usage: "ジョブ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "ジョブ一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "limit",
								Usage: "表示件数",
								Value: 20,
							},
						},
						Action: appcli.JobListAction,
					},
					{
						Name:  "show",
						Usage: "ジョブ詳細を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ジョブID",
								Required: true,
							},
						},
						Action: appcli.JobShowAction,
					},
				},
			},
			{
				Name:  "catalog",
				Usage: "カタログ参照コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "委員会・学年・教科・単元を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "board",
								Usage: "教育委員会",
							},
							&cli.IntFlag{
								Name:  "class",
								Usage: "学年",
							},
							&cli.StringFlag{
								Name:  "subject",
								Usage: "教科",
							},
						},
						Action: appcli.CatalogListAction,
					},
				},
			},
			{
				Name:  "server",
				Usage: "HTTP APIサーバーコマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTP APIサーバーを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "port",
								Usage: "待ち受けポート（未指定の場合は SERVER_PORT）",
							},
						},
						Action: appcli.ServerStartAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "データベース管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "migrate",
						Usage:  "スキーマを適用",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.DBMigrateAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
