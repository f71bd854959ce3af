package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finansheet/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/commitments/1").
		Body(map[string]int{"id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Location"); got != "/api/commitments/1" {
		t.Errorf("Location = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if strings.TrimSpace(w.Body.String()) != `{"id":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "" {
		t.Error("Content-Type must not be set without a body")
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		code    int
	}{
		{"BadRequest", BadRequestError("bad"), http.StatusBadRequest},
		{"Unprocessable", UnprocessableEntityError("bad"), http.StatusUnprocessableEntity},
		{"Internal", InternalServerError("bad"), http.StatusInternalServerError},
		{"NotFound", NotFoundError("bad"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.code {
				t.Errorf("Status code = %d, want %d", w.Code, tt.code)
			}
			if strings.TrimSpace(w.Body.String()) != `{"error":"bad"}` {
				t.Errorf("Body = %q", w.Body.String())
			}
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("pause commitment 3: %w", core.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("add term: %w", core.ErrTermOrder), http.StatusConflict},
		{fmt.Errorf("resume: %w", core.ErrNotPaused), http.StatusConflict},
		{fmt.Errorf("validate term: %w", core.ErrInvalidDueDay), http.StatusUnprocessableEntity},
		{core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{&BodyError{Msg: "invalid JSON body"}, http.StatusBadRequest},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := StatusForError(tt.err); got != tt.want {
			t.Errorf("StatusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFromError_HidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	FromError(errors.New("open /var/lib/finansheet.db: permission denied")).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "permission denied") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}

func TestFromError_ValidationDetails(t *testing.T) {
	err := validate.Struct(PaymentRequest{Period: "2024-13", Amount: "1"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	w := httptest.NewRecorder()
	FromError(err).Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"PaymentRequest.period":"period"`) {
		t.Errorf("Body = %s", w.Body.String())
	}
}
