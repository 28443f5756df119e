package builder

import (
	"github.com/shouni/go-cinema-kit/internal/config"
	"github.com/shouni/go-cinema-kit/pkg/workflow"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各実行ステップに渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config     *config.Config          // Configは、環境変数から読み込まれたグローバルな設定です（APIキーなど）。
	Options    config.GenerateOptions  // Optionsは、コマンドラインから渡された実行時の設定です。
	Reader     remoteio.InputReader    // Readerは、外部データやコンセプト文の読み込みに使用する入力元です。
	Writer     remoteio.OutputWriter   // Writerは、生成された成果物を保存するための出力先です。
	Workflow   *workflow.Builder       // Workflowは、各工程の実行器を組み立てるビルダーです。
	httpClient httpkit.ClientInterface // httpClient は外部APIとの通信に使う共通クライアント
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	httpClient httpkit.ClientInterface,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	wf *workflow.Builder,
) AppContext {
	return AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		Reader:     reader,
		Writer:     writer,
		Workflow:   wf,
		httpClient: httpClient,
	}
}
