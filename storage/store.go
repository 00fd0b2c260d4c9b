// Package storage persists completed workflow artifacts and feedback records.
//
// Two backends are provided: GormStore (postgres, mysql, sqlite through
// internal/database) and MongoStore. Both satisfy workflow.ArtifactSink and
// workflow.FeedbackSink so they plug straight into the orchestrator and the
// manager.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/BaSui01/docflow/workflow"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("storage: not found")
	// ErrStoreClosed 存储已关闭
	ErrStoreClosed = errors.New("storage: store is closed")
)

// Store is the artifact and feedback persistence contract.
type Store interface {
	workflow.ArtifactSink
	workflow.FeedbackSink
	GetArtifact(ctx context.Context, workflowID string) (*Artifact, error)
	ListFeedback(ctx context.Context, workflowID string) ([]workflow.FeedbackRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// Artifact is the stored form of a finished workflow.
type Artifact struct {
	WorkflowID    string           `json:"workflow_id"`
	ProjectID     string           `json:"project_id"`
	RepositoryURL string           `json:"repository_url"`
	Status        workflow.Status  `json:"status"`
	AIPowered     bool             `json:"ai_powered"`
	OverallScore  float64          `json:"overall_score"`
	Documentation string           `json:"documentation"`
	Result        *workflow.Result `json:"result"`
	FeedbackCount int              `json:"feedback_count"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// newArtifact 从工作流快照构造产物
func newArtifact(wf *workflow.Workflow) (*Artifact, error) {
	if wf == nil || wf.ID == "" {
		return nil, fmt.Errorf("storage: workflow without id")
	}
	a := &Artifact{
		WorkflowID:    wf.ID,
		ProjectID:     wf.Request.ProjectID,
		RepositoryURL: wf.Request.RepositoryURL,
		Status:        wf.Status,
		AIPowered:     wf.AIPowered,
		Result:        wf.Result,
		CreatedAt:     wf.CreatedAt,
		CompletedAt:   wf.CompletedAt,
	}
	if wf.Result != nil {
		a.Documentation = wf.Result.Documentation
		if wf.Result.Quality != nil {
			a.OverallScore = wf.Result.Quality.OverallScore
		}
	}
	return a, nil
}

func encodeResult(r *workflow.Result) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

func decodeResult(payload string) (*workflow.Result, error) {
	if payload == "" {
		return nil, nil
	}
	var r workflow.Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}

func encodeScores(s map[string]int) (string, error) {
	if len(s) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode scores: %w", err)
	}
	return string(data), nil
}

func decodeScores(raw string) (map[string]int, error) {
	if raw == "" {
		return nil, nil
	}
	var s map[string]int
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return s, nil
}
