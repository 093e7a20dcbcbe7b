package httpapi

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"tavolo.org/internal/auth"
)

// UnaryAuthInterceptor authenticates unary gRPC calls for internal
// services that share the token format with the HTTP surface. Methods
// listed in public are reachable without a token; everything else needs a
// valid access token, and refresh tokens are rejected outright since gRPC
// carries no refresh endpoints.
func UnaryAuthInterceptor(service *auth.Service, public map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if public[info.FullMethod] {
			return handler(ctx, req)
		}
		token, err := bearerFromMetadata(ctx)
		if err != nil {
			return nil, err
		}
		ac, err := service.Authenticate(ctx, token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		if ac.Class == auth.ClassRefresh {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(auth.ContextWithAuth(ctx, ac), req)
	}
}

func bearerFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing credentials")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", status.Error(codes.Unauthenticated, "missing credentials")
	}
	raw := values[0]
	if len(raw) < len(bearerPrefix) || !strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
		return "", status.Error(codes.Unauthenticated, "missing credentials")
	}
	token := strings.TrimSpace(raw[len(bearerPrefix):])
	if token == "" {
		return "", status.Error(codes.Unauthenticated, "missing credentials")
	}
	return token, nil
}
