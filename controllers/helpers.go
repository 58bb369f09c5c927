package controllers

import (
	"strconv"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/middleware"

	"github.com/gin-gonic/gin"
)

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 20

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "20")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}
	return pageInt, limitInt
}

// currentUser returns the authenticated caller or attaches a 401.
func currentUser(ctx *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.Error(apperrors.New(apperrors.ErrUnauthorized.Code, "unauthorized", nil))
		return "", false
	}
	return userID, true
}

func bindError(ctx *gin.Context, err error) {
	ctx.Error(apperrors.Validation("invalid request: %v", err))
}
