package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rainfeed/backend/pkg/retry"
)

const contextSystemPrompt = `Given the first text block (a chunk) and the second text block (the full document it comes from), provide: 1) one sentence that contextualizes where the chunk comes from, 2) a concise outline of the full document with one line per section/chapter, and clearly indicate where the chunk fits. Keep total output under half a page.`

// GenerateContext produces a one-shot contextual summary locating the chunk
// within its source document.
func (c *Client) GenerateContext(ctx context.Context, chunkText, fullDocument, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var content string
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateChatCompletion(ctx, contextRequest(chunkText, fullDocument, model, false))
			if err != nil {
				return fmt.Errorf("failed to generate context: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("context generator returned no choices")
			}
			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// StreamContext streams the contextual summary incrementally, invoking emit
// for each text delta. Emit errors abort the stream.
func (c *Client) StreamContext(ctx context.Context, chunkText, fullDocument, model string, emit func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.api.CreateChatCompletionStream(ctx, contextRequest(chunkText, fullDocument, model, true))
	if err != nil {
		return fmt.Errorf("failed to open context stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read context stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return err
		}
	}
}

func contextRequest(chunkText, fullDocument, model string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       model,
		Stream:      stream,
		Temperature: 0.2,
		MaxTokens:   800,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: contextSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: chunkText + "\n\n" + fullDocument},
		},
	}
}
