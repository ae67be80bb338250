package echo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/internal/provider"
	"maestro/internal/provider/echo"
	"maestro/pkg/testutil"
)

func TestEchoCompleter(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "a completer without a preamble", func(t *testing.T) {
		completer := echo.New("")

		testutil.When(t, "completing a prompt", func(t *testing.T) {
			out, err := completer.Complete(ctx, provider.Request{
				SystemPrompt: "you are a billing assistant",
				Prompt:       "quero pagar meu boleto",
			})
			require.NoError(t, err)

			testutil.Then(t, "it echoes the prompt verbatim", func(t *testing.T) {
				assert.Equal(t, "quero pagar meu boleto", out.Text)
			})
			testutil.Then(t, "it counts tokens on both sides", func(t *testing.T) {
				assert.Equal(t, 9, out.InputTokens)
				assert.Equal(t, 4, out.OutputTokens)
			})
		})
	})

	testutil.Given(t, "a completer with a preamble", func(t *testing.T) {
		completer := echo.New("Echo:")

		testutil.When(t, "completing a prompt", func(t *testing.T) {
			out, err := completer.Complete(ctx, provider.Request{Prompt: "ola"})
			require.NoError(t, err)

			testutil.Then(t, "the preamble prefixes the reply", func(t *testing.T) {
				assert.Equal(t, "Echo: ola", out.Text)
			})
		})
	})
}
