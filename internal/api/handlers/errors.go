package handlers

import (
	"net/http"
	"time"

	"library-services/pkg/apperror"
	"library-services/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the error body both services answer with
type ErrorResponse struct {
	Timestamp   time.Time         `json:"timestamp"`
	Status      int               `json:"status"`
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	Path        string            `json:"path"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// respondError maps err to its status and writes the error body. Unclassified
// errors are logged by the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	_ = c.Error(err)
	writeError(c, status, message, nil)
}

// respondValidation reports a malformed body or failed struct validation
func respondValidation(c *gin.Context, err error) {
	fields := validator.FieldErrors(err)
	message := "Validation failed"
	if len(fields) == 0 {
		message = "Invalid request: " + err.Error()
		fields = nil
	}
	writeError(c, http.StatusBadRequest, message, fields)
}

func writeError(c *gin.Context, status int, message string, fields map[string]string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Timestamp:   time.Now().UTC(),
		Status:      status,
		Error:       http.StatusText(status),
		Message:     message,
		Path:        c.Request.URL.Path,
		FieldErrors: fields,
	})
}

// bindAndValidate decodes the JSON body into req and runs struct validation.
// It writes the 400 response itself and reports whether the handler may go on.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondValidation(c, err)
		return false
	}
	if err := validator.ValidateStruct(req); err != nil {
		respondValidation(c, err)
		return false
	}
	return true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	return parseUUID(c, name, c.Param(name))
}

func parseUUID(c *gin.Context, name, raw string) (uuid.UUID, bool) {
	if raw == "" {
		respondError(c, apperror.Validation("%s is required", name))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, apperror.Validation("invalid %s format: %s", name, raw))
		return uuid.Nil, false
	}
	return id, true
}
