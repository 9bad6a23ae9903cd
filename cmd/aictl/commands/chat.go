package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/appleintelligence"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/openai"
)

func newChatCmd(f *rootFlags) *cobra.Command {
	var (
		modelName string
		system    string
		noStream  bool
	)

	cmd := &cobra.Command{
		Use:   "chat <prompt>...",
		Short: "Send a prompt to the local model",
		Long: `Ensure the server is running and send a single chat completion.

Examples:
  aictl chat "Summarize the plot of Hamlet"
  aictl chat --model permissive --no-stream "Hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			defer f.writeMetrics(opts)
			client, err := appleintelligence.NewOpenAIClient(cmd.Context(), opts)
			if err != nil {
				return err
			}

			req := openai.ChatCompletionRequest{Model: modelName}
			if system != "" {
				req.Messages = append(req.Messages, openai.ChatMessage{Role: openai.RoleSystem, Content: system})
			}
			req.Messages = append(req.Messages, openai.ChatMessage{Role: openai.RoleUser, Content: strings.Join(args, " ")})

			out := cmd.OutOrStdout()
			if noStream || f.output == outputJSON {
				resp, err := client.CreateChatCompletion(cmd.Context(), req)
				if err != nil {
					return err
				}
				if f.output == outputJSON {
					return printJSON(out, resp)
				}
				for _, ch := range resp.Choices {
					if _, err := fmt.Fprintln(out, ch.Message.Content); err != nil {
						return err
					}
				}
				return nil
			}

			stream, err := client.StreamChatCompletion(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer stream.Close()
			for {
				chunk, err := stream.Recv()
				if err != nil {
					if errors.Is(err, io.EOF) {
						_, err = fmt.Fprintln(out)
					}
					return err
				}
				for _, ch := range chunk.Choices {
					if _, err := fmt.Fprint(out, ch.Delta.Content); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "base", "Model to use (base|permissive)")
	cmd.Flags().StringVar(&system, "system", "", "Optional system prompt")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full reply instead of streaming")
	return cmd
}
