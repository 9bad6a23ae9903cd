package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/model"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/openai"
)

const maxRequestBody = 1 << 20

func (s *Server) modelsHandler(w http.ResponseWriter, _ *http.Request) {
	list := openai.ModelList{Object: openai.ObjectList}
	for _, id := range s.model.Models() {
		list.Data = append(list.Data, openai.Model{ID: id, Object: openai.ObjectModel, OwnedBy: "apple"})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) chatCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondAPIError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		respondAPIError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	name, err := model.Resolve(s.model, req.Model)
	if err != nil {
		respondAPIError(w, http.StatusNotFound, "model_not_found", fmt.Sprintf("model %q does not exist", req.Model))
		return
	}

	messages := make([]model.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, model.Message{Role: m.Role, Content: m.Content})
	}

	s.recorder.IncCompletion(name, req.Stream)
	if req.Stream {
		s.streamCompletion(w, r, name, messages)
		return
	}

	text, err := s.model.Generate(r.Context(), name, messages)
	if err != nil {
		s.logger.WithError(err).Error("generate failed")
		respondAPIError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
		ID:      newCompletionID(),
		Object:  openai.ObjectChatCompletion,
		Created: s.now().Unix(),
		Model:   name,
		Choices: []openai.ChatChoice{{
			Index:        0,
			Message:      openai.ChatMessage{Role: openai.RoleAssistant, Content: text},
			FinishReason: openai.FinishReasonStop,
		}},
	})
}

// streamCompletion writes a role chunk, one chunk per delta, a finish chunk
// and the [DONE] sentinel as server-sent events.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, name string, messages []model.Message) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id := newCompletionID()
	created := s.now().Unix()
	send := func(delta openai.ChunkDelta, finish *string) error {
		chunk := openai.ChatCompletionChunk{
			ID:      id,
			Object:  openai.ObjectChatCompletionChunk,
			Created: created,
			Model:   name,
			Choices: []openai.ChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
		enc, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", enc); err != nil {
			return err
		}
		return rc.Flush()
	}

	log := s.logger.WithFields(logrus.Fields{"id": id, "model": name})
	if err := send(openai.ChunkDelta{Role: openai.RoleAssistant}, nil); err != nil {
		log.WithError(err).Debug("stream aborted")
		return
	}

	err := s.model.Stream(r.Context(), name, messages, func(delta string) error {
		return send(openai.ChunkDelta{Content: delta}, nil)
	})
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			log.Debug("client went away mid-stream")
		} else {
			log.WithError(err).Error("stream failed")
		}
		return
	}

	stop := openai.FinishReasonStop
	if err := send(openai.ChunkDelta{}, &stop); err != nil {
		log.WithError(err).Debug("stream aborted")
		return
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	_ = rc.Flush()
}

func newCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}
