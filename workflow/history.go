package workflow

import (
	"math"
	"time"
)

// DefaultHistorySize is the number of transitions retained per workflow.
const DefaultHistorySize = 20

// StatusHistorySize is the number of transitions returned by status reads.
const StatusHistorySize = 10

// TaskSkipped marks stages the request excluded.
const TaskSkipped = "skipped"

// NewWorkflow builds the initiated snapshot for a request.
func NewWorkflow(id string, req Request, now time.Time, aiPowered bool) *Workflow {
	wf := &Workflow{
		ID:        id,
		Status:    StatusInitiated,
		Message:   "Initializing documentation generation workflow",
		CreatedAt: now,
		UpdatedAt: now,
		Agents:    make(map[string]AgentState, len(PipelineStages)),
		Request:   req.clone(),
		AIPowered: aiPowered,
	}
	if !aiPowered {
		wf.Message += " (demo mode: no AI provider configured, using template content)"
	}
	planned := make(map[string]bool)
	for _, s := range PlanStages(req) {
		planned[s] = true
	}
	for _, s := range PipelineStages {
		st := AgentState{AgentID: s, AgentName: StageDisplayName(s), Status: AgentIdle}
		if !planned[s] {
			st.CurrentTask = TaskSkipped
		}
		wf.Agents[s] = st
	}
	return wf
}

// recordTransition appends the agent's current state to the bounded history.
func (w *Workflow) recordTransition(agent string, limit int, at time.Time) {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	st := w.Agents[agent]
	w.History = append(w.History, Transition{
		Agent:            agent,
		Status:           st.Status,
		Progress:         st.Progress,
		CurrentTask:      st.CurrentTask,
		WorkflowProgress: w.Progress,
		Timestamp:        at,
	})
	if over := len(w.History) - limit; over > 0 {
		w.History = append([]Transition(nil), w.History[over:]...)
	}
}

// stageProgress returns round(100*done/total).
func stageProgress(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
