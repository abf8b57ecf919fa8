package grpchealth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestValidateAPIKey(t *testing.T) {
	incoming := func(kv map[string]string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.New(kv))
	}

	tests := []struct {
		name     string
		ctx      context.Context
		expected string
		code     codes.Code
	}{
		{"no auth configured", context.Background(), "", codes.OK},
		{"missing metadata", context.Background(), "secret-key", codes.Unauthenticated},
		{"missing key", incoming(map[string]string{"other-header": "value"}), "secret-key", codes.Unauthenticated},
		{"invalid key", incoming(map[string]string{apiKeyHeader: "wrong-key"}), "secret-key", codes.Unauthenticated},
		{"valid key", incoming(map[string]string{apiKeyHeader: "secret-key"}), "secret-key", codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAPIKey(tt.ctx, tt.expected)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
