package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// 🍃 MongoDB 存储
// =============================================================================

// collection *mongo.Collection 中用到的方法
type collection interface {
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

type artifactDoc struct {
	WorkflowID    string     `bson:"_id"`
	ProjectID     string     `bson:"project_id"`
	RepositoryURL string     `bson:"repository_url"`
	Status        string     `bson:"status"`
	AIPowered     bool       `bson:"ai_powered"`
	OverallScore  float64    `bson:"overall_score"`
	Documentation string     `bson:"documentation"`
	Payload       string     `bson:"payload"`
	FeedbackCount int        `bson:"feedback_count"`
	CreatedAt     time.Time  `bson:"created_at"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty"`
}

type feedbackDoc struct {
	ID           string         `bson:"_id"`
	WorkflowID   string         `bson:"workflow_id"`
	UserID       string         `bson:"user_id,omitempty"`
	ProjectID    string         `bson:"project_id,omitempty"`
	Rating       int            `bson:"rating"`
	Scores       map[string]int `bson:"scores"`
	Comments     string         `bson:"comments,omitempty"`
	QualityScore float64        `bson:"quality_score"`
	SubmittedAt  time.Time      `bson:"submitted_at"`
}

// MongoStore 基于 MongoDB 的产物与反馈存储
type MongoStore struct {
	client    *mongo.Client
	artifacts collection
	feedback  collection
	timeout   time.Duration
	logger    *zap.Logger
	closed    atomic.Bool
}

// OpenMongo 连接 MongoDB 并创建存储
func OpenMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("storage: mongo uri is required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("storage: connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("storage: ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := newMongoStore(db.Collection(cfg.Collection), db.Collection(cfg.Collection+"_feedback"), cfg.Timeout, logger)
	s.client = client
	s.logger.Info("mongo store connected",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)
	return s, nil
}

func newMongoStore(artifacts, feedback collection, timeout time.Duration, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MongoStore{
		artifacts: artifacts,
		feedback:  feedback,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "mongo_store")),
	}
}

// SaveArtifact 按 workflow_id upsert 产物
func (s *MongoStore) SaveArtifact(ctx context.Context, wf *workflow.Workflow) error {
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

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 覆盖时保留已有的反馈计数
	var existing artifactDoc
	switch err := s.artifacts.FindOne(ctx, bson.D{{Key: "_id", Value: a.WorkflowID}}).Decode(&existing); {
	case err == nil:
		a.FeedbackCount = existing.FeedbackCount
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("storage: load artifact %s: %w", a.WorkflowID, err)
	}

	doc := artifactDoc{
		WorkflowID:    a.WorkflowID,
		ProjectID:     a.ProjectID,
		RepositoryURL: a.RepositoryURL,
		Status:        string(a.Status),
		AIPowered:     a.AIPowered,
		OverallScore:  a.OverallScore,
		Documentation: a.Documentation,
		Payload:       payload,
		FeedbackCount: a.FeedbackCount,
		CreatedAt:     a.CreatedAt,
		CompletedAt:   a.CompletedAt,
	}
	_, err = s.artifacts.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.WorkflowID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("storage: save artifact %s: %w", doc.WorkflowID, err)
	}
	return nil
}

// RecordFeedback 写入反馈并累加产物的反馈计数
func (s *MongoStore) RecordFeedback(ctx context.Context, rec workflow.FeedbackRecord) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := feedbackDoc{
		ID:           rec.ID,
		WorkflowID:   rec.WorkflowID,
		UserID:       rec.UserID,
		ProjectID:    rec.ProjectID,
		Rating:       rec.Rating,
		Scores:       rec.Scores,
		Comments:     rec.Comments,
		QualityScore: rec.QualityScore,
		SubmittedAt:  rec.SubmittedAt,
	}
	if _, err := s.feedback.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("storage: feedback %s already recorded: %w", rec.ID, err)
		}
		return fmt.Errorf("storage: record feedback %s: %w", rec.ID, err)
	}

	_, err := s.artifacts.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: rec.WorkflowID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "feedback_count", Value: 1}}}},
	)
	if err != nil {
		// 反馈已落库，计数失败只记录日志
		s.logger.Warn("failed to bump feedback count", zap.String("workflow_id", rec.WorkflowID), zap.Error(err))
	}
	return nil
}

// GetArtifact 读取产物
func (s *MongoStore) GetArtifact(ctx context.Context, workflowID string) (*Artifact, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc artifactDoc
	err := s.artifacts.FindOne(ctx, bson.D{{Key: "_id", Value: workflowID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get artifact %s: %w", workflowID, err)
	}
	res, err := decodeResult(doc.Payload)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		WorkflowID:    doc.WorkflowID,
		ProjectID:     doc.ProjectID,
		RepositoryURL: doc.RepositoryURL,
		Status:        workflow.Status(doc.Status),
		AIPowered:     doc.AIPowered,
		OverallScore:  doc.OverallScore,
		Documentation: doc.Documentation,
		Result:        res,
		FeedbackCount: doc.FeedbackCount,
		CreatedAt:     doc.CreatedAt,
		CompletedAt:   doc.CompletedAt,
	}, nil
}

// ListFeedback 按提交时间返回某个工作流的反馈
func (s *MongoStore) ListFeedback(ctx context.Context, workflowID string) ([]workflow.FeedbackRecord, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.feedback.Find(ctx,
		bson.D{{Key: "workflow_id", Value: workflowID}},
		options.Find().SetSort(bson.D{{Key: "submitted_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list feedback %s: %w", workflowID, err)
	}
	var docs []feedbackDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("storage: list feedback %s: %w", workflowID, err)
	}

	out := make([]workflow.FeedbackRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, workflow.FeedbackRecord{
			ID:           d.ID,
			WorkflowID:   d.WorkflowID,
			UserID:       d.UserID,
			ProjectID:    d.ProjectID,
			Rating:       d.Rating,
			Scores:       d.Scores,
			Comments:     d.Comments,
			QualityScore: d.QualityScore,
			SubmittedAt:  d.SubmittedAt,
		})
	}
	return out, nil
}

// Ping 检查 MongoDB 连接
func (s *MongoStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, readpref.Primary())
}

// Close 断开 MongoDB 连接
func (s *MongoStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
