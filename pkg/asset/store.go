package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"golang.org/x/sync/singleflight"
)

// maxDownloadBytes は1アセットあたりの取得上限です。動画クリップでも十分な余裕を持たせています。
const maxDownloadBytes = 512 << 20

// Store は生成サービスが返すアセットの取得と永続化をまとめます。
// ローカルとGCSのどちらが出力先でも同じ呼び出しで済むようにします。
type Store struct {
	httpClient httpkit.ClientInterface
	writer     remoteio.OutputWriter
	reader     remoteio.InputReader

	// 同じURLを複数シーンが参照することがあるため、取得は集約する
	fetchGroup singleflight.Group
	mu         sync.RWMutex
	fetched    map[string]string
}

// NewStore は依存関係を注入して初期化します。
func NewStore(httpClient httpkit.ClientInterface, writer remoteio.OutputWriter, reader remoteio.InputReader) *Store {
	return &Store{
		httpClient: httpClient,
		writer:     writer,
		reader:     reader,
		fetched:    map[string]string{},
	}
}

// SaveBytes は生成済みのバイト列をそのまま出力先へ書き込みます。
func (s *Store) SaveBytes(ctx context.Context, path string, data []byte, mimeType string) error {
	if err := s.writer.Write(ctx, path, bytes.NewReader(data), mimeType); err != nil {
		return fmt.Errorf("アセットの書き込みに失敗しました (%s): %w", path, err)
	}
	return nil
}

// ReadBytes は出力先からアセットを読み戻します。審査やフレーム抽出に使います。
func (s *Store) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	rc, err := s.reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("アセットの読み込みに失敗しました (%s): %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("アセットの読み込みに失敗しました (%s): %w", path, err)
	}
	return data, nil
}

// FetchAndStore は生成サービスのURLからアセットを取得し、出力先へ保存します。
//
// 同じURLへの並行取得は singleflight で1回に集約されます。戻り値は保存先パスです。
func (s *Store) FetchAndStore(ctx context.Context, url, destPath, mimeType string) (string, error) {
	v, err, _ := s.fetchGroup.Do(url, func() (interface{}, error) {
		s.mu.RLock()
		existing, ok := s.fetched[url]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		data, err := s.download(ctx, url)
		if err != nil {
			return nil, err
		}
		if err := s.SaveBytes(ctx, destPath, data, mimeType); err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.fetched[url] = destPath
		s.mu.Unlock()
		return destPath, nil
	})
	if err != nil {
		return "", fmt.Errorf("アセットの取得に失敗しました (%s): %w", url, err)
	}
	return v.(string), nil
}

func (s *Store) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("予期しないステータスコード: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}
