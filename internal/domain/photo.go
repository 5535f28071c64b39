package domain

import "time"

// 已知媒体扩展名（全小写，含点）。
// 取自 Takeout 导出中实际出现过的格式集合；不认识的扩展名直接跳过。
var (
	ImageExts = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".heic": {},
		".heif": {}, ".gif": {}, ".bmp": {}, ".webp": {},
	}
	VideoExts = map[string]struct{}{
		".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {},
		".wmv": {}, ".m4v": {}, ".3gp": {},
	}
)

// IsImageExt 判断扩展名（需全小写）是否为已知图片格式。
func IsImageExt(ext string) bool {
	_, ok := ImageExts[ext]
	return ok
}

// IsMediaExt 判断扩展名（需全小写）是否为已知图片或视频格式。
func IsMediaExt(ext string) bool {
	if _, ok := ImageExts[ext]; ok {
		return true
	}
	_, ok := VideoExts[ext]
	return ok
}

// PhotoRecord 描述一次扫描得到的媒体文件及各阶段派生出的属性。
//
// 不变量（实现必须遵守）：
// - Path 一旦创建不可变更（它是一次 run 内的唯一主键）
// - 其余字段按阶段独占写入：只有 Hasher 写 ContentHash，只有 Restorer 写
//   CapturedAt，只有 Quality Assessor 写 Width/Height/IsBlurry/BlurScore/IsCorrupted
type PhotoRecord struct {
	Path      string // clean + absolute
	SizeBytes int64

	// ContentHash 是全文件 SHA-256 的 hex 编码；hash 阶段之前为空串，
	// 不可读文件在 hash 阶段之后仍为空串（不参与重复分组）。
	ContentHash string

	// Width/Height 在尺寸探测成功前保持 0。
	Width  int
	Height int

	// CapturedAt 为零值表示拍摄时间未知（organize 时落入 Unknown Date 桶）。
	CapturedAt time.Time

	IsBlurry     bool
	BlurScore    float64
	HasBlurScore bool
	IsCorrupted  bool

	HasSidecar  bool
	SidecarPath string
}
