package middleware

import (
	"strconv"

	"codearena/internal/gateway/service"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware admits a submission against quota for the client address and,
// when a token identified the caller, the user. Rejections carry a Retry-After header.
func RateLimitMiddleware(rateService *service.RateLimitService, route string, quota service.SubmitQuota) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateService == nil || !quota.Enabled() {
			c.Next()
			return
		}
		who := service.Submitter{Route: route, ClientIP: c.ClientIP()}
		if userID, _, ok := AuthenticatedUser(c); ok {
			who.UserID = userID
		}
		if err := rateService.AdmitSubmission(c.Request.Context(), who, quota); err != nil {
			if appErr := pkgerrors.GetError(err); appErr.Code == pkgerrors.TooManyRequests {
				if secs, ok := appErr.Details["retry_after"].(int); ok {
					c.Header("Retry-After", strconv.Itoa(secs))
				}
			}
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
