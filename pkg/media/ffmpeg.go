package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpeg はローカルの ffmpeg/ffprobe を呼び出すラッパーです。
// フレーム抽出と最終結合はローカルの作業ディレクトリ上で行います。
type FFmpeg struct {
	binary string
}

// NewFFmpeg は既定のバイナリ名で初期化します。
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{binary: "ffmpeg"}
}

// ExtractFirstFrame はクリップの先頭フレームを画像として書き出します。
func (f *FFmpeg) ExtractFirstFrame(ctx context.Context, videoPath, outPath string) error {
	cmd := exec.CommandContext(ctx, f.binary, "-y",
		"-i", videoPath,
		"-vf", `select=eq(n\,0)`,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("先頭フレームの抽出に失敗しました (%s): %w: %s", videoPath, err, tailOutput(out))
	}
	return nil
}

// ExtractLastFrame はクリップの末尾フレームを画像として書き出します。
// 末尾から0.1秒手前をシークするのが確実なのだ。
func (f *FFmpeg) ExtractLastFrame(ctx context.Context, videoPath, outPath string) error {
	cmd := exec.CommandContext(ctx, f.binary, "-y",
		"-sseof", "-0.1",
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("末尾フレームの抽出に失敗しました (%s): %w: %s", videoPath, err, tailOutput(out))
	}
	return nil
}

// NormalizeClip はクリップを共通フォーマット（24fps, 1920x1080, H.264）へ揃えます。
// 解像度やfpsの異なるクリップを結合すると崩れるため、結合前に必ず通します。
func (f *FFmpeg) NormalizeClip(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, f.binary, "-y",
		"-i", inPath,
		"-vf", "fps=24,scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2,setsar=1",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("クリップの正規化に失敗しました (%s): %w: %s", inPath, err, tailOutput(out))
	}
	return nil
}

// ConcatClips は正規化済みのクリップ群を順番どおりに1本へ結合します。
func (f *FFmpeg) ConcatClips(ctx context.Context, clipPaths []string, outPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("結合するクリップがありません")
	}

	listFile := filepath.Join(filepath.Dir(outPath), "concat_list.txt")
	var lines []string
	for _, p := range clipPaths {
		lines = append(lines, fmt.Sprintf("file '%s'", p))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("結合リストの書き込みに失敗しました: %w", err)
	}
	defer os.Remove(listFile)

	cmd := exec.CommandContext(ctx, f.binary, "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("クリップの結合に失敗しました: %w: %s", err, tailOutput(out))
	}
	return nil
}

// tailOutput はffmpegの長大な標準エラーの末尾だけをエラーに載せます。
func tailOutput(out []byte) string {
	const maxLen = 400
	s := strings.TrimSpace(string(out))
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
