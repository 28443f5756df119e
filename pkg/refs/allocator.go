// Package refs はシーン合成に渡す参照画像の割り当てを担当します。
//
// 画像モデルに同時に渡せる参照は最大3枚です。枠の配分は固定で、
// ポートレートに最大2枠、直前シーンの継続性キーフレームに1枠を使います。
package refs

import (
	"errors"
	"fmt"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// ErrReferenceOverflow は参照画像の割り当てが上限を超えたことを示します。
// 割り当てロジック上は起こり得ないため、観測されたら実装の不変条件が壊れています。
var ErrReferenceOverflow = errors.New("参照画像が上限を超えました")

// MaxReferences は画像モデルに一度に渡せる参照画像の上限です。
const MaxReferences = 3

// maxPortraits はポートレートに割ける枠の数です。残り1枠は継続性用に予約します。
const maxPortraits = 2

// Kind は参照画像の役割です。
type Kind string

const (
	// KindPortrait はキャラクターの確定ポートレートです。
	KindPortrait Kind = "portrait"
	// KindContinuity は直前シーンの確定キーフレームです。
	KindContinuity Kind = "continuity"
)

// Ref は合成リクエストに渡す参照画像1枚分です。
type Ref struct {
	Kind Kind
	// Name はポートレートならキャラクター名、継続性なら空です。
	Name string
	Path string
	URL  string
}

// Allocate はシーンに渡す参照画像を決定します。
//
// シーンの登場順で先頭から最大2人分のポートレートを取り、continuity が
// 非nilなら最後の1枠に置きます。戻り値の順序は常に ポートレート→継続性 です。
// 同じ入力からは常に同じ割り当てが得られます。
func Allocate(scene *domain.Scene, chars domain.CharacterAssets, continuity *domain.KeyframeAsset) ([]Ref, error) {
	refs := make([]Ref, 0, MaxReferences)
	for _, name := range scene.CharactersPresent {
		if len(refs) >= maxPortraits {
			break
		}
		asset, ok := chars[name]
		if !ok {
			// 脚本に居ないキャラクターは黙って飛ばす。検出自体は脚本検証側の仕事なのだ。
			continue
		}
		refs = append(refs, Ref{
			Kind: KindPortrait,
			Name: asset.Name,
			Path: asset.PortraitPath,
			URL:  asset.PortraitURL,
		})
	}
	if continuity != nil {
		refs = append(refs, Ref{
			Kind: KindContinuity,
			Path: continuity.KeyframePath,
			URL:  continuity.KeyframeURL,
		})
	}
	if len(refs) > MaxReferences {
		return nil, fmt.Errorf("シーン %d の参照画像が %d 枚になり上限 %d を超えました: %w", scene.SceneID, len(refs), MaxReferences, ErrReferenceOverflow)
	}
	return refs, nil
}

// Portraits は割り当てのうちポートレート参照だけを返します。
func Portraits(refs []Ref) []Ref {
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		if r.Kind == KindPortrait {
			out = append(out, r)
		}
	}
	return out
}
