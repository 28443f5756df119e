package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shouni/go-cinema-kit/pkg/asset"
	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// AssemblyRunner は確定済みクリップを1本の動画へ結合する実行器です。
type AssemblyRunner struct {
	assembler ClipAssembler
	store     AssetStore
	baseDir   string
}

// NewAssemblyRunner は依存関係を注入して初期化します。
func NewAssemblyRunner(assembler ClipAssembler, store AssetStore, baseDir string) *AssemblyRunner {
	return &AssemblyRunner{assembler: assembler, store: store, baseDir: baseDir}
}

// Run はクリップをシーン順に正規化・結合し、最終動画のパスを返します。
func (ar *AssemblyRunner) Run(ctx context.Context, videos []*domain.VideoAsset) (string, error) {
	if len(videos) == 0 {
		return "", fmt.Errorf("結合するクリップがありません")
	}

	// 1本だけなら正規化も結合も要らない。そのまま最終パスへ複製して終わり。
	if len(videos) == 1 {
		return ar.copySingleClip(ctx, videos[0])
	}

	ordered := make([]*domain.VideoAsset, len(videos))
	copy(ordered, videos)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SceneID < ordered[j].SceneID })

	// fpsや解像度の揃っていないクリップを直接 concat すると壊れるので必ず正規化を挟む
	normalized := make([]string, 0, len(ordered))
	for _, v := range ordered {
		outPath, err := asset.ResolveOutputPath(ar.baseDir+"/"+asset.VideoDir, fmt.Sprintf("normalized_scene_%d.mp4", v.SceneID))
		if err != nil {
			return "", err
		}
		slog.Info("クリップを正規化するのだ", "scene", v.SceneID, "in", v.VideoPath)
		if err := ar.assembler.NormalizeClip(ctx, v.VideoPath, outPath); err != nil {
			return "", fmt.Errorf("シーン %d の正規化に失敗しました: %w", v.SceneID, err)
		}
		normalized = append(normalized, outPath)
	}

	finalPath, err := asset.ResolveOutputPath(ar.baseDir, asset.DefaultFinalVideoName)
	if err != nil {
		return "", err
	}
	if err := ar.assembler.ConcatClips(ctx, normalized, finalPath); err != nil {
		return "", err
	}

	slog.Info("最終動画が完成したのだ", "path", finalPath, "clips", len(normalized))
	return finalPath, nil
}

func (ar *AssemblyRunner) copySingleClip(ctx context.Context, v *domain.VideoAsset) (string, error) {
	finalPath, err := asset.ResolveOutputPath(ar.baseDir, asset.DefaultFinalVideoName)
	if err != nil {
		return "", err
	}
	data, err := ar.store.ReadBytes(ctx, v.VideoPath)
	if err != nil {
		return "", fmt.Errorf("シーン %d のクリップ読み込みに失敗しました: %w", v.SceneID, err)
	}
	if err := ar.store.SaveBytes(ctx, finalPath, data, "video/mp4"); err != nil {
		return "", fmt.Errorf("最終動画の保存に失敗しました: %w", err)
	}
	slog.Info("クリップが1本だけなのでそのまま最終動画にしたのだ", "path", finalPath)
	return finalPath, nil
}
