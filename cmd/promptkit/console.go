package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/schollz/progressbar/v3"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/lifecycle"
)

const consoleHelp = `commands:
  upload <path>  画像を読み込む
  generate       プロンプトを生成する
  reset          すべてクリアする
  state          現在の状態を表示する
  quit           終了する`

// console は1行ずつコマンドを解釈してライフサイクルを操作します。
type console struct {
	lc  *lifecycle.Lifecycle
	out io.Writer
}

func runConsole(ctx context.Context, lc *lifecycle.Lifecycle) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	c := &console{lc: lc, out: rl.Stdout()}
	fmt.Fprintln(c.out, consoleHelp)
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil { // io.EOF, readline.ErrInterrupt
			break
		}
		if quit := c.execute(ctx, line); quit {
			break
		}
	}
	return nil
}

// execute はコマンドを1つ実行し、終了すべきなら true を返します。
func (c *console) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "upload":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "usage: upload <path>")
			return false
		}
		c.upload(ctx, strings.Join(fields[1:], " "))
	case "generate":
		c.generate(ctx)
	case "reset":
		c.lc.Reset()
		c.printSnapshot(c.lc.Snapshot())
	case "state":
		c.printSnapshot(c.lc.Snapshot())
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q (help で一覧を表示)\n", cmd)
	}
	return false
}

func (c *console) upload(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		// 開けなかった場合もエンコード失敗として状態に反映させます。
		err = c.lc.Upload(ctx, errReader{err}, "")
	} else {
		defer f.Close()
		err = c.lc.Upload(ctx, f, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))))
	}
	if err != nil {
		c.printError(err)
		return
	}
	c.printSnapshot(c.lc.Snapshot())
}

func (c *console) generate(ctx context.Context) {
	attempt, err := c.lc.Generate(ctx)
	if err != nil {
		c.printError(err)
		return
	}
	c.waitWithSpinner(ctx, attempt)
	c.printSnapshot(c.lc.Snapshot())
}

// waitWithSpinner は試行が終わるまでスピナーを回します。
func (c *console) waitWithSpinner(ctx context.Context, attempt *lifecycle.Attempt) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Generating prompt"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	defer func() {
		_ = bar.Finish()
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-attempt.Done():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

func (c *console) printSnapshot(s lifecycle.Snapshot) {
	fmt.Fprintf(c.out, "state: %s\n", s.State)
	if s.Image != nil {
		fmt.Fprintf(c.out, "image: %s (%d base64 chars)\n", s.Image.MimeType, len(s.Image.Base64))
	}
	if s.Result != nil && s.Result.IsSuccess() {
		fmt.Fprintf(c.out, "prompt:\n%s\n", s.Result.Prompt)
	}
	if s.Error != "" {
		fmt.Fprintf(c.out, "error: %s\n", s.Error)
	}
}

func (c *console) printError(err error) {
	var encErr *domain.EncodingError
	if errors.As(err, &encErr) {
		fmt.Fprintf(c.out, "error: %s (%v)\n", encErr.UserMessage(), encErr.Err)
		return
	}
	fmt.Fprintf(c.out, "error: %v\n", err)
}

// errReader は常に err を返す io.Reader です。
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
