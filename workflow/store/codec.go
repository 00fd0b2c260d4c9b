package store

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/BaSui01/docflow/workflow"
)

func encode(wf *workflow.Workflow) ([]byte, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encode workflow %s: %w", wf.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	return &wf, nil
}
