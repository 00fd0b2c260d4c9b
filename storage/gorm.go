package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/docflow/internal/database"
	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// 🗄️ GORM 存储
// =============================================================================

// artifactRow docflow_artifacts 表
type artifactRow struct {
	WorkflowID    string  `gorm:"column:workflow_id;primaryKey;size:64"`
	ProjectID     string  `gorm:"column:project_id;size:128;index"`
	RepositoryURL string  `gorm:"column:repository_url;size:512"`
	Status        string  `gorm:"column:status;size:32"`
	AIPowered     bool    `gorm:"column:ai_powered"`
	OverallScore  float64 `gorm:"column:overall_score"`
	Documentation string  `gorm:"column:documentation;type:text"`
	Payload       string  `gorm:"column:payload;type:text"`
	FeedbackCount int     `gorm:"column:feedback_count;default:0"`
	CreatedAt     time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

func (artifactRow) TableName() string { return "docflow_artifacts" }

// feedbackRow docflow_feedback 表
type feedbackRow struct {
	ID           string    `gorm:"column:id;primaryKey;size:64"`
	WorkflowID   string    `gorm:"column:workflow_id;size:64;index"`
	UserID       string    `gorm:"column:user_id;size:128"`
	ProjectID    string    `gorm:"column:project_id;size:128"`
	Rating       int       `gorm:"column:rating"`
	Scores       string    `gorm:"column:scores;type:text"`
	Comments     string    `gorm:"column:comments;type:text"`
	QualityScore float64   `gorm:"column:quality_score"`
	SubmittedAt  time.Time `gorm:"column:submitted_at;index"`
}

func (feedbackRow) TableName() string { return "docflow_feedback" }

// GormOptions GORM 存储选项
type GormOptions struct {
	// AutoMigrate 启动时自动建表，生产环境使用 docflow migrate
	AutoMigrate bool
	// TxRetries 反馈写入事务的最大尝试次数
	TxRetries int
}

// GormStore 基于 GORM 的产物与反馈存储
type GormStore struct {
	pool   *database.PoolManager
	opts   GormOptions
	logger *zap.Logger
	closed atomic.Bool
}

// NewGormStore 创建 GORM 存储
func NewGormStore(pool *database.PoolManager, opts GormOptions, logger *zap.Logger) (*GormStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("storage: database pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TxRetries <= 0 {
		opts.TxRetries = 3
	}
	s := &GormStore{
		pool:   pool,
		opts:   opts,
		logger: logger.With(zap.String("component", "gorm_store")),
	}
	if opts.AutoMigrate {
		if err := pool.DB().AutoMigrate(&artifactRow{}, &feedbackRow{}); err != nil {
			return nil, fmt.Errorf("storage: auto migrate: %w", err)
		}
	}
	return s, nil
}

// SaveArtifact 写入或覆盖产物（按 workflow_id upsert，保留反馈计数）
func (s *GormStore) SaveArtifact(ctx context.Context, wf *workflow.Workflow) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	a, err := newArtifact(wf)
	if err != nil {
		return err
	}
	payload, err := encodeResult(a.Result)
	if err != nil {
		return err
	}
	row := artifactRow{
		WorkflowID:    a.WorkflowID,
		ProjectID:     a.ProjectID,
		RepositoryURL: a.RepositoryURL,
		Status:        string(a.Status),
		AIPowered:     a.AIPowered,
		OverallScore:  a.OverallScore,
		Documentation: a.Documentation,
		Payload:       payload,
		CreatedAt:     a.CreatedAt,
		CompletedAt:   a.CompletedAt,
	}

	err = s.pool.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "workflow_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"project_id", "repository_url", "status", "ai_powered",
			"overall_score", "documentation", "payload", "completed_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("storage: save artifact %s: %w", wf.ID, err)
	}
	s.logger.Debug("artifact saved", zap.String("workflow_id", wf.ID))
	return nil
}

// RecordFeedback 在事务中写入反馈并累加产物的反馈计数
func (s *GormStore) RecordFeedback(ctx context.Context, rec workflow.FeedbackRecord) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	scores, err := encodeScores(rec.Scores)
	if err != nil {
		return err
	}
	row := feedbackRow{
		ID:           rec.ID,
		WorkflowID:   rec.WorkflowID,
		UserID:       rec.UserID,
		ProjectID:    rec.ProjectID,
		Rating:       rec.Rating,
		Scores:       scores,
		Comments:     rec.Comments,
		QualityScore: rec.QualityScore,
		SubmittedAt:  rec.SubmittedAt,
	}

	err = s.pool.WithTransactionRetry(ctx, s.opts.TxRetries, func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&artifactRow{}).
			Where("workflow_id = ?", rec.WorkflowID).
			UpdateColumn("feedback_count", gorm.Expr("feedback_count + ?", 1)).Error
	})
	if err != nil {
		return fmt.Errorf("storage: record feedback %s: %w", rec.ID, err)
	}
	return nil
}

// GetArtifact 读取产物
func (s *GormStore) GetArtifact(ctx context.Context, workflowID string) (*Artifact, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	var row artifactRow
	err := s.pool.DB().WithContext(ctx).Where("workflow_id = ?", workflowID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get artifact %s: %w", workflowID, err)
	}
	res, err := decodeResult(row.Payload)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		WorkflowID:    row.WorkflowID,
		ProjectID:     row.ProjectID,
		RepositoryURL: row.RepositoryURL,
		Status:        workflow.Status(row.Status),
		AIPowered:     row.AIPowered,
		OverallScore:  row.OverallScore,
		Documentation: row.Documentation,
		Result:        res,
		FeedbackCount: row.FeedbackCount,
		CreatedAt:     row.CreatedAt,
		CompletedAt:   row.CompletedAt,
	}, nil
}

// ListFeedback 按提交时间返回某个工作流的反馈
func (s *GormStore) ListFeedback(ctx context.Context, workflowID string) ([]workflow.FeedbackRecord, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	var rows []feedbackRow
	err := s.pool.DB().WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("submitted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("storage: list feedback %s: %w", workflowID, err)
	}
	out := make([]workflow.FeedbackRecord, 0, len(rows))
	for _, r := range rows {
		scores, err := decodeScores(r.Scores)
		if err != nil {
			return nil, err
		}
		out = append(out, workflow.FeedbackRecord{
			ID:           r.ID,
			WorkflowID:   r.WorkflowID,
			UserID:       r.UserID,
			ProjectID:    r.ProjectID,
			Rating:       r.Rating,
			Scores:       scores,
			Comments:     r.Comments,
			QualityScore: r.QualityScore,
			SubmittedAt:  r.SubmittedAt,
		})
	}
	return out, nil
}

// Ping 检查数据库连接
func (s *GormStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return s.pool.Ping(ctx)
}

// Pool 返回底层连接池
func (s *GormStore) Pool() *database.PoolManager { return s.pool }

// Close 关闭存储及其连接池
func (s *GormStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.pool.Close()
}
