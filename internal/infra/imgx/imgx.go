package imgx

import (
	"errors"
	"image"
	"os"

	_ "image/gif"  // 注册 GIF 解码器
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
)

// ErrUnsupported 表示该文件不是标准库能解码的图片格式（heic/webp 等）。
// 上层应把它当作“无法评估”而不是“文件损坏”。
var ErrUnsupported = errors.New("imgx: 不支持的图片格式")

// ProbeConfig 读取图片头部返回像素尺寸（不解码全图）。
// 解码失败意味着文件损坏或格式未知，由上层区分处理。
func ProbeConfig(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return 0, 0, ErrUnsupported
		}
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// SharpnessScore 计算图片的清晰度评分：灰度图拉普拉斯响应的方差。
// 分数越高越清晰；模糊判定阈值由调用方掌握。
//
// 约束：
// - 输入必须是标准库可解码的格式（JPEG/PNG/GIF），否则返回 ErrUnsupported
// - 同一文件多次评分结果必须一致（纯函数，无随机采样）
func SharpnessScore(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return 0, ErrUnsupported
		}
		return 0, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		// 卷积核放不下：按“完全无细节”处理。
		return 0, nil
	}

	// 先转灰度（BT.601 亮度），避免在卷积里重复做色彩换算。
	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			gray[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}

	// 4 邻域拉普拉斯响应的均值与方差（两遍式，数值上足够稳）。
	n := 0
	sum := 0.0
	lap := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := gray[(y-1)*w+x] + gray[(y+1)*w+x] + gray[y*w+x-1] + gray[y*w+x+1] - 4*gray[y*w+x]
			lap = append(lap, v)
			sum += v
			n++
		}
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range lap {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n), nil
}
