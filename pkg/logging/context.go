package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey        = "trace_id"
	NotificationIDKey = "notification_id"
	StageKey          = "stage"
	ServiceNameKey    = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey(TraceIDKey), traceID)
}

func WithNotificationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey(NotificationIDKey), id)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, contextKey(StageKey), stage)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetNotificationID(ctx context.Context) string {
	return stringValue(ctx, NotificationIDKey)
}

func GetStage(ctx context.Context) string {
	return stringValue(ctx, StageKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func stringValue(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	for _, key := range []string{TraceIDKey, NotificationIDKey, StageKey, ServiceNameKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
