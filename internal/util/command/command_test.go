package command_test

import (
	"context"
	"testing"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/test"
	"github.com/agentvault/agent-vault/internal/util/command"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithServer(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		ctx := context.Background()

		var testError = errors.New("test error")

		resultErr := command.WithServer(ctx, s.Config, func(ctx context.Context, inner *api.Server) error {
			rec, err := inner.Registry.CreateOrLoad("command-test-agent")
			require.NoError(t, err)
			assert.NotEmpty(t, rec.Address())

			return testError
		})

		assert.Equal(t, testError, resultErr)
	})
}
