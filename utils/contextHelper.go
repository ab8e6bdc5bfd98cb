package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/production_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyOperatorName  = appctx.ContextKeyOperatorName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetOperatorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOperatorName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetOperatorNameInContext(ctx context.Context, name string) context.Context {
	return appctx.Set(ctx, ContextKeyOperatorName, name)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
