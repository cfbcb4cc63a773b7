package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/formation-lms-api/internal/middleware"
	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// requireActor resolves the caller or writes a 401 and reports false.
func requireActor(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

// optionalActor returns the zero Actor for anonymous callers.
func optionalActor(c *gin.Context) service.Actor {
	if claims := claimsFromContext(c); claims != nil {
		return service.Actor{ID: claims.UserID, Role: claims.Role}
	}
	return service.Actor{}
}

func auditMeta(c *gin.Context) service.AuditMeta {
	meta := service.AuditMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		meta.ActorID = claims.UserID
	}
	return meta
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, size
}

// idQuery reads an optional id filter. A value that is not a UUID is
// answered with 400 and reported as false.
func idQuery(c *gin.Context, name string) (string, bool) {
	value := c.Query(name)
	if value == "" {
		return "", true
	}
	if _, err := uuid.Parse(value); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be a UUID"))
		return "", false
	}
	return value, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// respondCached writes data with meta.cache_hit populated.
func respondCached(c *gin.Context, data interface{}, hit bool) {
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, nil, middleware.ExtractMeta(c))
}
