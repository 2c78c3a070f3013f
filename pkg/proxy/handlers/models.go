package handlers

import (
	"net/http"
	"time"

	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/proxy"
	"kiro-hq/gateway/pkg/proxy/types"
)

// ModelLister is satisfied by *models.Resolver.
type ModelLister interface {
	ListModels() []models.ModelInfo
}

// ModelsHandler serves GET /v1/models in the OpenAI list format.
type ModelsHandler struct {
	models  ModelLister
	created int64
}

// NewModelsHandler creates a ModelsHandler. Every entry reports the handler's
// creation time as "created".
func NewModelsHandler(m ModelLister) *ModelsHandler {
	return &ModelsHandler{models: m, created: time.Now().Unix()}
}

// ServeHTTP implements http.Handler.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	all := h.models.ListModels()
	list := types.ModelList{Object: "list", Data: make([]types.ModelEntry, 0, len(all))}
	for _, m := range all {
		list.Data = append(list.Data, types.ModelEntry{
			ID:          m.ID,
			Object:      "model",
			Created:     h.created,
			OwnedBy:     m.OwnedBy,
			DisplayName: m.DisplayName,
			MaxTokens:   m.MaxTokens,
		})
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, list)
}
