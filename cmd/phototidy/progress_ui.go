package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/phototidy/phototidy/internal/config"
	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/pipeline"
)

var _ pipeline.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：pipeline 层只发事件，CLI 决定如何展示
// - 有文件计数的阶段画进度条（含 ETA），其余阶段只打阶段行
type progressUI struct {
	w io.Writer

	bar      *progressbar.ProgressBar
	barStage int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

var stageLabels = map[string]string{
	"setup":      "初始化目录",
	"extract":    "解压压缩包",
	"scan":       "扫描媒体文件",
	"restore":    "恢复拍摄时间",
	"hash":       "计算内容指纹",
	"duplicates": "重复分组",
	"quality":    "质量评估",
	"bursts":     "连拍分组",
	"organize":   "归档入库",
}

func stageLabel(name string) string {
	if l, ok := stageLabels[name]; ok {
		return l
	}
	return name
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	fmt.Fprintf(p.w, "[%s] phototidy run\n", time.Now().Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	exiftool := strings.TrimSpace(eff.ExifTool)
	if exiftool == "" {
		exiftool = "自动探测"
	}
	fmt.Fprintf(p.w, "  exiftool: %s\n", exiftool)
	fmt.Fprintf(p.w, "  exif_fallback: %s\n", onOff(eff.ExifFallback))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnStageStart(name string, num, total int) {
	p.closeBar()
	fmt.Fprintf(p.w, "[%d/%d] %s\n", num, total, stageLabel(name))
}

func (p *progressUI) OnProgress(snap domain.ProgressSnapshot) {
	if snap.TotalFiles <= 0 {
		return
	}
	if p.bar == nil || p.barStage != snap.StepNum {
		p.closeBar()
		p.barStage = snap.StepNum
		p.bar = progressbar.NewOptions(snap.TotalFiles,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription(stageLabel(snap.Step)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetPredictTime(true),
		)
	}
	_ = p.bar.Set(snap.FilesProcessed)
}

func (p *progressUI) OnStageDone(name string, fields map[string]any, dur time.Duration) {
	p.closeBar()
	line := stageLabel(name) + " 完成"
	if fs := formatFields(fields); fs != "" {
		line += ": " + fs
	}
	fmt.Fprintf(p.w, "%s (%s)\n", line, formatShortDuration(dur))
}

func (p *progressUI) closeBar() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Clear()
	_ = p.bar.Close()
	p.bar = nil
}

// formatFields 把阶段统计格式化成 "k=v k=v"（键排序，输出稳定）。
func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
