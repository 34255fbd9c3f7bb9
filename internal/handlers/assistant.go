package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/agent"
	"medibook-server/internal/chatbot"
	"medibook-server/internal/external"
	"medibook-server/internal/utils"
)

// AssistantHandler serves the canned chatbot and the AI agent.
type AssistantHandler struct {
	Agent  *agent.Agent
	Speech external.Speech
	Log    zerolog.Logger
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(a *agent.Agent, speech external.Speech, logger zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{Agent: a, Speech: speech, Log: logger}
}

// ChatMessageRequest carries one user message.
type ChatMessageRequest struct {
	Message string `json:"message" binding:"required,max=2000"`
}

// Greet returns the chatbot's opening message.
func (h *AssistantHandler) Greet(c *gin.Context) {
	utils.Success(c, "Greeting", chatbot.Greet())
}

// Message answers a chatbot message.
func (h *AssistantHandler) Message(c *gin.Context) {
	var req ChatMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	utils.Success(c, "Reply", chatbot.Reply(req.Message))
}

// AgentChatRequest carries a question and the prompt mode.
type AgentChatRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
	Mode    string `json:"mode"`
}

// AgentChat answers a question through the AI agent.
func (h *AssistantHandler) AgentChat(c *gin.Context) {
	var req AgentChatRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	mode, err := agent.ParseMode(req.Mode)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	answer, err := h.Agent.Chat(c.Request.Context(), mode, req.Message)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Agent reply", answer)
}

// SpeechRequest carries the text to read aloud.
type SpeechRequest struct {
	Text string `json:"text" binding:"required,max=2500"`
}

// AgentSpeech returns the text as audio.
func (h *AssistantHandler) AgentSpeech(c *gin.Context) {
	var req SpeechRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	audio, contentType, err := h.Speech.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.Data(http.StatusOK, contentType, audio)
}
