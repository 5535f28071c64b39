package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/phototidy/phototidy/internal/config"
	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/pipeline"
	"github.com/phototidy/phototidy/internal/review"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "review":
		if code := reviewCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:        ra.Path,
		Workers:     ra.Workers,
		WorkersSet:  ra.WorkersSet,
		ExifTool:    ra.ExifTool,
		ExifToolSet: ra.ExifToolSet,
	})
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, err))
		return 1
	}

	logger, closeLog := newLogger(eff.Path)
	defer closeLog()

	// Ctrl-C / SIGTERM 协作式取消：进行中的任务做完，不再开新任务。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressW, interactive := pickProgressWriter()
	var obs pipeline.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := pipeline.ExecuteWithObserver(ctx, logger, eff, obs)

	emitReport(rr)
	if rr.Error == "" && !rr.Cancelled {
		return 0
	}
	return 1
}

type runArgs struct {
	Path string

	Workers    int
	WorkersSet bool

	ExifTool    string
	ExifToolSet bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--workers":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--workers 需要一个值")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return runArgs{}, fmt.Errorf("--workers 必须是整数，实际是 %q", args[i])
			}
			ra.Workers = n
			ra.WorkersSet = true
		case strings.HasPrefix(a, "--workers="):
			v := strings.TrimPrefix(a, "--workers=")
			n, err := strconv.Atoi(v)
			if err != nil {
				return runArgs{}, fmt.Errorf("--workers 必须是整数，实际是 %q", v)
			}
			ra.Workers = n
			ra.WorkersSet = true
		case a == "--exiftool":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--exiftool 需要一个值")
			}
			i++
			ra.ExifTool = args[i]
			ra.ExifToolSet = true
		case strings.HasPrefix(a, "--exiftool="):
			ra.ExifTool = strings.TrimPrefix(a, "--exiftool=")
			ra.ExifToolSet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Path != "" {
				return runArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
		}
	}

	return ra, nil
}

func reviewCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printReviewUsage()
			return 0
		}
	}

	va, err := parseReviewArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printReviewUsage()
		return 2
	}

	base := va.Base
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
			return 1
		}
		base = cwd
	}
	base, _ = filepath.Abs(base)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	a := &review.Applier{Logger: logger, Base: base}
	res, err := a.Apply(va.Action, va.GroupDir, va.Photo)
	if err != nil {
		if review.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "分组不可用：%v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "应用决定失败：%v\n", err)
		}
		return 1
	}

	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, res.Message)
	} else {
		// stdout 非 TTY：只输出一个 Result JSON。
		_ = json.NewEncoder(os.Stdout).Encode(res)
	}
	return 0
}

type reviewArgs struct {
	Action   string
	GroupDir string
	Photo    string
	Base     string
}

func parseReviewArgs(args []string) (reviewArgs, error) {
	va := reviewArgs{}
	pos := make([]string, 0, 3)

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--path":
			if i+1 >= len(args) {
				return reviewArgs{}, fmt.Errorf("--path 需要一个值")
			}
			i++
			va.Base = args[i]
		case strings.HasPrefix(a, "--path="):
			va.Base = strings.TrimPrefix(a, "--path=")
		case strings.HasPrefix(a, "-"):
			return reviewArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			pos = append(pos, a)
		}
	}

	if len(pos) < 2 {
		return reviewArgs{}, fmt.Errorf("需要 <action> 与 <group-dir>")
	}
	va.Action = pos[0]
	va.GroupDir = pos[1]
	if len(pos) >= 3 {
		va.Photo = pos[2]
	}
	if len(pos) > 3 {
		return reviewArgs{}, fmt.Errorf("多余的参数：%v", pos[3:])
	}

	switch va.Action {
	case review.ActionKeepOne:
		if va.Photo == "" {
			return reviewArgs{}, fmt.Errorf("keep_one 需要指定照片文件名")
		}
	case review.ActionKeepAll, review.ActionDeleteAll:
		if va.Photo != "" {
			return reviewArgs{}, fmt.Errorf("%s 不接受照片文件名", va.Action)
		}
	default:
		return reviewArgs{}, fmt.Errorf("action 只能是 keep_one、keep_all 或 delete_all，实际是 %q", va.Action)
	}
	return va, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  phototidy run [path] [--workers N] [--exiftool PATH]
  phototidy review <keep_one|keep_all|delete_all> <group-dir> [photo] [--path BASE]

命令：
  run     对档案目录执行一次完整处理流水线
  review  对暂存区的一个分组应用人工决定

使用 "phototidy <命令> --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  phototidy run [path] [--workers N] [--exiftool PATH]

参数：
  path        档案根目录（未指定则读取当前目录下 phototidy.json 的 path 字段）
  --workers   并行阶段的 worker 数（默认 4，上限 32）
  --exiftool  exiftool 可执行文件路径（未指定则自动探测；探测不到退化为纯 Go 能力）
  -h, --help  显示帮助
`)
}

func printReviewUsage() {
	fmt.Fprint(os.Stdout, `用法：
  phototidy review <keep_one|keep_all|delete_all> <group-dir> [photo] [--path BASE]

参数：
  keep_one    只保留指定照片（入库），删除分组其余成员
  keep_all    分组内所有媒体文件入库，然后删除分组
  delete_all  无条件删除整个分组
  --path      档案根目录（默认当前目录）
  -h, --help  显示帮助
`)
}

// newLogger 构造结构化日志：stderr + <base>/logs/processing_<时间戳>.log。
// 日志文件打不开时退化为仅 stderr（不阻塞 run）。
func newLogger(base string) (*slog.Logger, func()) {
	w := io.Writer(os.Stderr)
	closeFn := func() {}

	logDir := filepath.Join(base, "logs")
	if err := os.MkdirAll(logDir, 0o755); err == nil {
		name := "processing_" + time.Now().Format("20060102_150405") + ".log"
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = io.MultiWriter(os.Stderr, f)
			closeFn = func() { _ = f.Close() }
		}
	}
	return slog.New(slog.NewTextHandler(w, nil)), closeFn
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		s := rr.Stats
		fmt.Fprintf(os.Stdout, "完成：processed=%d moved=%d duplicates=%d blurry=%d corrupted=%d bursts=%d too_small=%d\n",
			s.TotalProcessed, s.MovedToLibrary, s.DuplicatesFound, s.BlurryFound, s.CorruptedFound, s.BurstsFound, s.TooSmallFound,
		)
		if rr.Cancelled {
			fmt.Fprintln(os.Stderr, "run 已取消（统计为部分结果）")
		}
		if rr.Error != "" {
			fmt.Fprintf(os.Stderr, "run 失败：%s\n", rr.Error)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	_ = json.NewEncoder(os.Stdout).Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：processed=%d moved=%d issues=%d\n",
		rr.Stats.TotalProcessed, rr.Stats.MovedToLibrary, len(rr.Issues),
	)
}

func reportForConfigError(cwdAbs string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       cwdAbs,
		StartedAt:  now,
		FinishedAt: now,
		Error:      errorWithCode(err),
		Issues:     []domain.IssueResult{},
	}
	rr.Finalize()
	return rr
}

func errorWithCode(err error) string {
	if code := config.Code(err); code != "" {
		return err.Error()
	}
	return fmt.Sprintf("配置错误：%v", err)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
