package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/clinicdesk/internal/assistant"
	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// AssistantHandler runs typed commands directly or through the chat model.
type AssistantHandler struct {
	assistant *assistant.Assistant
	logger    *logging.Logger
}

func NewAssistantHandler(a *assistant.Assistant, logger *logging.Logger) *AssistantHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AssistantHandler{assistant: a, logger: logger.Component("http.assistant")}
}

type commandRequest struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args"`
}

// Commands handles POST /api/assistant/commands.
func (h *AssistantHandler) Commands(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, h.logger, &clinic.ValidationError{Fields: []string{"command is required"}})
		return
	}
	res, err := h.assistant.Run(r.Context(), actorFrom(r), req.Command, req.Args)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if res.Warning != "" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// Chat handles POST /api/assistant/chat.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, h.logger, &clinic.ValidationError{Fields: []string{"message is required"}})
		return
	}
	res, err := h.assistant.Chat(r.Context(), actorFrom(r), req.Message)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
