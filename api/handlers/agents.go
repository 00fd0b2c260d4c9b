package handlers

import (
	"net/http"

	"github.com/BaSui01/docflow/api"
	"github.com/BaSui01/docflow/stages"
)

// AgentCatalog 阶段能力目录，*stages.Catalog 实现
type AgentCatalog interface {
	Agents() []stages.AgentInfo
	Mode() string
	ProviderName() string
}

// AgentsHandler 处理 /agents/status
type AgentsHandler struct {
	catalog AgentCatalog
}

// NewAgentsHandler 创建阶段目录处理器
func NewAgentsHandler(catalog AgentCatalog) *AgentsHandler {
	return &AgentsHandler{catalog: catalog}
}

// HandleStatus 处理 GET /agents/status
// @Summary 阶段能力与可用性
// @Tags 阶段
// @Produce json
// @Success 200 {object} Response{data=api.AgentsStatusResponse}
// @Router /agents/status [get]
func (h *AgentsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	agents := h.catalog.Agents()
	WriteSuccess(w, r, http.StatusOK, api.AgentsStatusResponse{
		TotalAgents: len(agents),
		Mode:        h.catalog.Mode(),
		Provider:    h.catalog.ProviderName(),
		Agents:      agents,
	})
}
