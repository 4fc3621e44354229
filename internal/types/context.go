package types

import "context"

type ContextKey string

const (
	CtxRequestID  ContextKey = "ctx_request_id"
	CtxPracticeID ContextKey = "ctx_practice_id"
	CtxUserID     ContextKey = "ctx_user_id"
)

// DefaultUserID is recorded as created_by/updated_by for system-initiated
// mutations (batch jobs, webhook reconciliation).
const DefaultUserID = "system"

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

func GetRequestID(ctx context.Context) string {
	return ctxValueString(ctx, CtxRequestID)
}

func SetPracticeID(ctx context.Context, practiceID string) context.Context {
	return context.WithValue(ctx, CtxPracticeID, practiceID)
}

func GetPracticeID(ctx context.Context) string {
	return ctxValueString(ctx, CtxPracticeID)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

func GetUserID(ctx context.Context) string {
	if v := ctxValueString(ctx, CtxUserID); v != "" {
		return v
	}
	return DefaultUserID
}

func ctxValueString(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
