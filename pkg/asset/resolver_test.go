package asset

import (
	"strings"
	"testing"
)

func TestPortraitPath(t *testing.T) {
	t.Run("キャラクター名と版番号からパスを組み立てるのだ", func(t *testing.T) {
		got, err := PortraitPath("out", "ミカ", 2)
		if err != nil {
			t.Fatalf("パス解決に失敗したのだ: %v", err)
		}
		if !strings.HasSuffix(got, "ミカ_v2.jpg") || !strings.Contains(got, CharacterSheetDir) {
			t.Errorf("ポートレートのパスが違うのだ: %s", got)
		}
	})

	t.Run("パスに使えない文字は丸めるのだ", func(t *testing.T) {
		got, err := PortraitPath("out", "Dr. Vane/α", 1)
		if err != nil {
			t.Fatalf("パス解決に失敗したのだ: %v", err)
		}
		if !strings.HasSuffix(got, "Dr_Vane_α_v1.jpg") {
			t.Errorf("ファイル名の正規化が違うのだ: %s", got)
		}
	})
}

func TestScenePaths(t *testing.T) {
	t.Run("シーン成果物のパス規約が揃っているのだ", func(t *testing.T) {
		kf, err := KeyframePath("out", 3, 1)
		if err != nil {
			t.Fatalf("パス解決に失敗したのだ: %v", err)
		}
		if !strings.HasSuffix(kf, "scene_3_v1.jpg") {
			t.Errorf("キーフレームのパスが違うのだ: %s", kf)
		}

		vid, err := SceneVideoPath("out", 3, 2)
		if err != nil {
			t.Fatalf("パス解決に失敗したのだ: %v", err)
		}
		if !strings.HasSuffix(vid, "scene_3_v2.mp4") {
			t.Errorf("動画のパスが違うのだ: %s", vid)
		}

		frame, err := FramePath("out", 3, 2, "last")
		if err != nil {
			t.Fatalf("パス解決に失敗したのだ: %v", err)
		}
		if !strings.HasSuffix(frame, "scene_3_v2_last.jpg") {
			t.Errorf("フレームのパスが違うのだ: %s", frame)
		}
	})
}
