package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"gwi.com/llm-chat-service/internal/core"
)

var validate = validator.New()

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChatRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model"`
	// Accepted for compatibility; answers are never streamed.
	IsStreaming bool `json:"isStreaming"`
}

type FeedbackRequest struct {
	IsPositive bool   `json:"isPositive"`
	Feedback   string `json:"feedback" validate:"required"`
}

// The status value itself is checked by the feedback service, after the
// admin check.
type UpdateFeedbackRequest struct {
	Status string `json:"status"`
}

type IDResponse struct {
	ID int64 `json:"id"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type AnswerResponse struct {
	Answer string `json:"answer"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// Failures wrap core.ErrValidation.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", core.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return nil
}
