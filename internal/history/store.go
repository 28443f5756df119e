// Package history は実行履歴と確定アセットの記録を永続化するのだ。
package history

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// Run は1回のパイプライン実行の記録です。
type Run struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          string    `gorm:"uniqueIndex;size:64" json:"run_id"`
	Title          string    `gorm:"size:255" json:"title"`
	Style          string    `gorm:"type:text" json:"style"`
	Status         string    `gorm:"size:32" json:"status"` // "running", "completed", "failed"
	SceneCount     int       `json:"scene_count"`
	FinalVideoPath string    `gorm:"size:512" json:"final_video_path"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AssetRecord は確定アセット1つ分の記録です。
type AssetRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RunID     string    `gorm:"index;size:64" json:"run_id"`
	Kind      string    `gorm:"size:32" json:"kind"` // "portrait", "keyframe", "video"
	SceneID   int       `json:"scene_id"`
	Name      string    `gorm:"size:128" json:"name"`
	Path      string    `gorm:"size:512" json:"path"`
	Score     float64   `json:"score"`
	Attempts  int       `json:"attempts"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}

// Store は実行履歴のSQLiteストアです。
type Store struct {
	db        *gorm.DB
	threshold float64
}

// NewStore はDBを開いてマイグレーションまで済ませます。
func NewStore(dbPath string, threshold float64) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("履歴DBを開けませんでした (%s): %w", dbPath, err)
	}
	if err := db.AutoMigrate(&Run{}, &AssetRecord{}); err != nil {
		return nil, fmt.Errorf("履歴DBのマイグレーションに失敗しました: %w", err)
	}
	return &Store{db: db, threshold: threshold}, nil
}

// Close は下位のコネクションを閉じます。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartRun は実行開始を記録します。
func (s *Store) StartRun(state *domain.FilmState) error {
	run := Run{
		RunID:      state.RunID,
		Title:      state.Plan.Title,
		Style:      state.Plan.Style,
		Status:     "running",
		SceneCount: len(state.Plan.Scenes),
	}
	return s.db.Create(&run).Error
}

// FinishRun は実行の最終状態とアセット記録を書き込みます。
func (s *Store) FinishRun(state *domain.FilmState, status string) error {
	err := s.db.Model(&Run{}).
		Where("run_id = ?", state.RunID).
		Updates(map[string]any{"status": status, "final_video_path": state.FinalVideoPath}).Error
	if err != nil {
		return err
	}

	records := s.collectRecords(state)
	if len(records) == 0 {
		return nil
	}
	return s.db.Create(&records).Error
}

// RecentRuns は新しい順に実行記録を返します。
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.Order("created_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// AssetsForRun は指定実行の全アセット記録を返します。
func (s *Store) AssetsForRun(runID string) ([]AssetRecord, error) {
	var records []AssetRecord
	err := s.db.Where("run_id = ?", runID).Order("kind, scene_id, name").Find(&records).Error
	return records, err
}

func (s *Store) collectRecords(state *domain.FilmState) []AssetRecord {
	var records []AssetRecord
	for _, a := range state.Characters {
		rec := AssetRecord{RunID: state.RunID, Kind: "portrait", Name: a.Name, Path: a.PortraitPath, Attempts: a.GenerationAttempts}
		if a.Score != nil {
			rec.Score = a.Score.OverallScore
			rec.Accepted = a.Score.Passed(s.threshold)
		}
		records = append(records, rec)
	}
	for _, kf := range state.Keyframes {
		rec := AssetRecord{RunID: state.RunID, Kind: "keyframe", SceneID: kf.SceneID, Path: kf.KeyframePath, Attempts: kf.GenerationAttempts + kf.EditPasses}
		if kf.Score != nil {
			rec.Score = kf.Score.OverallScore
			rec.Accepted = kf.Score.Passed(s.threshold)
		}
		records = append(records, rec)
	}
	for _, v := range state.Videos {
		rec := AssetRecord{RunID: state.RunID, Kind: "video", SceneID: v.SceneID, Path: v.VideoPath, Attempts: v.CorrectionPasses + 1}
		if v.Score != nil {
			rec.Score = v.Score.OverallScore
			rec.Accepted = v.Score.Passed(s.threshold)
		}
		records = append(records, rec)
	}
	return records
}
