package stages

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

// FeedbackCollector 规范化反馈并维护滚动平均评分
type FeedbackCollector struct {
	mu          sync.Mutex
	total       int
	ratingSum   int
	perWorkflow map[string]int

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// NewFeedbackCollector 创建反馈收集阶段
func NewFeedbackCollector(logger *zap.Logger) *FeedbackCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackCollector{
		perWorkflow: make(map[string]int),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		logger:      logger.With(zap.String("stage", workflow.StageFeedbackCollector)),
	}
}

func (f *FeedbackCollector) Name() string { return workflow.StageFeedbackCollector }

// Run 读取 wctx.Feedback，写入 wctx.FeedbackReceipt
func (f *FeedbackCollector) Run(ctx context.Context, wctx *workflow.Context, report workflow.ProgressFunc) error {
	fb := wctx.Feedback
	if fb == nil {
		return types.NewError(types.ErrInvalidState, "no feedback to collect")
	}
	if err := workflow.ValidateFeedback(*fb); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	report(50, "Recording feedback")

	rec := workflow.FeedbackRecord{
		ID:         f.newID(),
		WorkflowID: fb.WorkflowID,
		UserID:     fb.UserID,
		ProjectID:  wctx.Request.ProjectID,
		Rating:     fb.Rating,
		Scores: map[string]int{
			"usefulness":   fb.UsefulnessScore,
			"accuracy":     fb.AccuracyScore,
			"completeness": fb.CompletenessScore,
		},
		Comments:    fb.Comments,
		SubmittedAt: f.now().UTC(),
	}
	if wctx.Quality != nil {
		rec.QualityScore = wctx.Quality.OverallScore
	}

	f.mu.Lock()
	f.total++
	f.ratingSum += fb.Rating
	f.perWorkflow[fb.WorkflowID]++
	avg := float64(f.ratingSum) / float64(f.total)
	total := f.total
	f.mu.Unlock()

	wctx.FeedbackReceipt = &workflow.FeedbackReceipt{
		FeedbackRecord: rec,
		AverageRating:  round2(avg),
		TotalFeedback:  total,
	}
	f.logger.Info("feedback collected",
		zap.String("workflow_id", fb.WorkflowID),
		zap.String("feedback_id", rec.ID),
		zap.Int("rating", fb.Rating),
		zap.Float64("average_rating", avg))
	report(100, "Feedback recorded")
	return nil
}

// Stats 返回当前累计的反馈数、平均评分与某个工作流的反馈数
func (f *FeedbackCollector) Stats(workflowID string) (total int, average float64, forWorkflow int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.total > 0 {
		average = round2(float64(f.ratingSum) / float64(f.total))
	}
	return f.total, average, f.perWorkflow[workflowID]
}
