package http

import (
	"encoding/json"
	"errors"
	"log"
	"reflect"
	"strings"

	"season-quiz-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

const (
	typeStart    = "start"
	typeAnswer   = "answer"
	typeBatch    = "batch"
	typeProgress = "progress"
)

type inboundMessage struct {
	Type    string          `json:"type" validate:"required,oneof=start answer batch progress"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Kind string `json:"kind" validate:"required"`
}

type answerPayload struct {
	AttemptID  string `json:"attemptId" validate:"required"`
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer"`
}

type batchAnswer struct {
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer"`
}

type batchPayload struct {
	AttemptID string        `json:"attemptId" validate:"required"`
	Answers   []batchAnswer `json:"answers" validate:"required,min=1,dive"`
}

func (p batchPayload) submissions() []domain.AnswerSubmission {
	out := make([]domain.AnswerSubmission, 0, len(p.Answers))
	for _, a := range p.Answers {
		out = append(out, domain.AnswerSubmission{QuestionID: a.QuestionID, Answer: a.Answer})
	}
	return out
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// errInvalidRequest rejects malformed envelopes before they reach the engine.
var errInvalidRequest = &domain.Error{Kind: domain.KindValidation, Code: "invalid_request", Message: "invalid request"}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode unmarshals raw into dst and validates it.
func decode(v *validator.Validate, raw json.RawMessage, dst interface{}) *errorPayload {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &errorPayload{Code: errInvalidRequest.Code, Message: "malformed payload"}
	}
	if err := v.Struct(dst); err != nil {
		return validationPayload(err)
	}
	return nil
}

func validationPayload(err error) *errorPayload {
	payload := &errorPayload{Code: errInvalidRequest.Code, Message: errInvalidRequest.Message}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		payload.Fields = make(map[string]string, len(ve))
		for _, fe := range ve {
			payload.Fields[fe.Namespace()] = fe.Tag()
		}
	}
	return payload
}

// toErrorPayload exposes only code and message. Non-domain errors are logged and masked.
func toErrorPayload(err error) errorPayload {
	derr := domain.AsError(err)
	if derr.Kind == domain.KindInternal {
		log.Printf("internal error: %v", err)
	}
	return errorPayload{Code: derr.Code, Message: derr.Message}
}
