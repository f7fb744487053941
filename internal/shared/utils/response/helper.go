package response

import (
	"hostly/internal/shared/apperr"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps a domain error onto its HTTP status and machine code.
func RespondError(c *gin.Context, err error) {
	code := apperr.HTTPStatus(err)
	c.JSON(code, StandardApiResponse{
		Status:     "error",
		StatusCode: code,
		Message:    err.Error(),
		Errors: ErrorDetail{
			Code: apperr.Code(err),
		},
	})
}
