package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-core/internal/media"
)

type MediaStoreMock struct {
	mock.Mock
}

func (m *MediaStoreMock) Upload(ctx context.Context, data []byte) (media.Media, error) {
	args := m.Called(ctx, data)
	var out media.Media
	if val := args.Get(0); val != nil {
		out = val.(media.Media)
	}
	return out, args.Error(1)
}

func (m *MediaStoreMock) Delete(ctx context.Context, mediaID string) error {
	args := m.Called(ctx, mediaID)
	return args.Error(0)
}
