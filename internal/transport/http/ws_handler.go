package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"season-quiz-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 << 10
	writeWait      = 10 * time.Second
)

// AttemptService is the engine surface used by the transports.
type AttemptService interface {
	StartAttempt(ctx context.Context, userID string, kind domain.SeasonKind) (domain.StartResult, error)
	SubmitAnswer(ctx context.Context, attemptID, userID string, sub domain.AnswerSubmission) (domain.SubmitResult, error)
	SubmitBatch(ctx context.Context, attemptID, userID string, answers []domain.AnswerSubmission) (domain.BatchResult, error)
	GetProgress(ctx context.Context, userID string) (domain.ProgressReport, error)
	ListSeasons(ctx context.Context) ([]domain.Season, error)
}

type WSHandler struct {
	service  AttemptService
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewWSHandler(service AttemptService) *WSHandler {
	return &WSHandler{
		service:  service,
		validate: newValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and answers each inbound envelope in order.
// The caller's identity comes from the userId query parameter.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error: %v", err)
			}
			return
		}
		reply := h.dispatch(ctx, userID, inbound)
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, userID string, inbound inboundMessage) outboundMessage[any] {
	if err := h.validate.Struct(inbound); err != nil {
		return errorMessage(*validationPayload(err))
	}

	switch inbound.Type {
	case typeStart:
		var p startPayload
		if bad := decode(h.validate, inbound.Payload, &p); bad != nil {
			return errorMessage(*bad)
		}
		res, err := h.service.StartAttempt(ctx, userID, domain.SeasonKind(p.Kind))
		return reply("started", res, err)

	case typeAnswer:
		var p answerPayload
		if bad := decode(h.validate, inbound.Payload, &p); bad != nil {
			return errorMessage(*bad)
		}
		res, err := h.service.SubmitAnswer(ctx, p.AttemptID, userID, domain.AnswerSubmission{
			QuestionID: p.QuestionID,
			Answer:     p.Answer,
		})
		return reply("answerResult", res, err)

	case typeBatch:
		var p batchPayload
		if bad := decode(h.validate, inbound.Payload, &p); bad != nil {
			return errorMessage(*bad)
		}
		res, err := h.service.SubmitBatch(ctx, p.AttemptID, userID, p.submissions())
		return reply("batchResult", res, err)

	default: // typeProgress
		res, err := h.service.GetProgress(ctx, userID)
		return reply("progress", res, err)
	}
}

func reply(typ string, payload any, err error) outboundMessage[any] {
	if err != nil {
		return errorMessage(toErrorPayload(err))
	}
	return outboundMessage[any]{Type: typ, Payload: payload}
}

func errorMessage(p errorPayload) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: p}
}
