package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-server/internal/domain/model"
	"scribe-server/internal/infrastructure/docstore"
	"scribe-server/internal/interfaces/httpserver/dto"
	"scribe-server/internal/utils/platformerrors"
)

// writeError maps pipeline errors onto HTTP statuses. Document-store
// failures surface as gateway errors, a missing credentialed model as
// service-unavailable with configuration guidance.
func writeError(c *gin.Context, err error) {
	var (
		unavailable *docstore.RemoteUnavailableError
		rejected    *docstore.RemoteRejectedError
		notColl     *docstore.NotACollectionError
		createFail  *docstore.CreateFailedError
		noModel     *model.NoModelAvailableError
		needsVision *model.VisionRequiredError
		platform    *platformerrors.PlatformError
	)

	switch {
	case errors.As(err, &notColl):
		c.JSON(http.StatusBadRequest, dto.Err("not_a_collection", err.Error()))
	case errors.As(err, &needsVision):
		c.JSON(http.StatusBadRequest, dto.Err("vision_required", err.Error()))
	case errors.As(err, &noModel):
		c.JSON(http.StatusServiceUnavailable, dto.Err("no_model_available", err.Error()))
	case errors.As(err, &unavailable):
		c.JSON(http.StatusBadGateway, dto.Err("store_unavailable", err.Error()))
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadGateway, dto.Err("store_rejected", err.Error()))
	case errors.As(err, &createFail):
		c.JSON(http.StatusBadGateway, dto.Err("create_failed", err.Error()))
	case errors.As(err, &platform):
		c.JSON(platformerrors.ErrorTypeToHTTPStatus(platform.Type), dto.Err(string(platform.Type), platform.Message))
	default:
		c.JSON(http.StatusInternalServerError, dto.Err("internal", err.Error()))
	}
	c.Error(err) //nolint:errcheck
}
