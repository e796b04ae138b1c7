package response

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lifehub-app/notify-engine/pkg/apperror"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// GetWorkspaceID retrieves the workspace ID set by the auth middleware.
// Returns uuid.Nil when the token carries no workspace claim.
func GetWorkspaceID(c *gin.Context) uuid.UUID {
	wsStr, exists := c.Get("workspace_id")
	if !exists {
		return uuid.Nil
	}

	wsID, err := uuid.Parse(wsStr.(string))
	if err != nil {
		return uuid.Nil
	}

	return wsID
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code == http.StatusInternalServerError {
		log.Printf("[Internal Error]: %v", err)
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
