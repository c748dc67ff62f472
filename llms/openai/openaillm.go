// Package openai implements the Model interface over the OpenAI Chat
// Completions API. It also serves OpenRouter, which speaks the same
// protocol under a different base URL.
package openai

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "llms_openai")

// OpenRouterBaseURL is the OpenRouter endpoint, which implements the
// Chat Completions protocol.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// LLM is a Chat Completions backed model.
type LLM struct {
	client   openai.Client
	model    string
	provider llms.ProviderType
}

var _ llms.Model = (*LLM)(nil)

// New returns a model talking to the OpenAI API.
func New(opts ...Option) (*LLM, error) {
	cfg := applyOptions(opts...)
	if cfg.model == "" {
		return nil, errors.New("model name is required")
	}

	reqOpts := []option.RequestOption{}
	if cfg.token != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.token))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &LLM{
		client:   openai.NewClient(reqOpts...),
		model:    cfg.model,
		provider: cfg.provider,
	}, nil
}

// NewOpenRouter returns a model talking to OpenRouter.
func NewOpenRouter(opts ...Option) (*LLM, error) {
	opts = append([]Option{
		WithBaseURL(OpenRouterBaseURL),
		withProviderType(llms.ProviderOpenRouter),
	}, opts...)
	return New(opts...)
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.provider
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// StreamChat implements the Model interface. Text arrives as token
// fragments; tool calls arrive as raw indexed fragments for the caller
// to reassemble.
func (o *LLM) StreamChat(ctx context.Context, messages []llms.Message, fn llms.StreamFunc, options ...llms.CallOption) (*llms.StreamResult, error) {
	opts := llms.NewCallOptions(options...)

	chatMsgs, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Messages: chatMsgs,
		Model:    values.StringsCoalesce(opts.Model, o.model),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if len(opts.Tools) > 0 {
		params.Tools = convertTools(opts.Tools)
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	res := &llms.StreamResult{}
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				if err := fn(ctx, llms.StreamEvent{TextDelta: ch.Delta.Content}); err != nil {
					return nil, err
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ev := llms.StreamEvent{
					ToolCallDelta: &llms.ToolCallDelta{
						Index:     int(tc.Index),
						ID:        tc.ID,
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
				if err := fn(ctx, ev); err != nil {
					return nil, err
				}
			}
			if ch.FinishReason != "" {
				res.FinishReason = ch.FinishReason
				if err := fn(ctx, llms.StreamEvent{FinishReason: ch.FinishReason}); err != nil {
					return nil, err
				}
			}
		}
		if ck.Usage.TotalTokens > 0 {
			res.InputTokens = ck.Usage.PromptTokens
			res.OutputTokens = ck.Usage.CompletionTokens
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.WithMessage(err, "streaming request failed")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"model", params.Model,
		"finish_reason", res.FinishReason,
		"input_tokens", res.InputTokens,
		"output_tokens", res.OutputTokens)
	return res, nil
}

func convertMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			out = append(out, openai.SystemMessage(textOf(mc)))
		case llms.RoleHuman:
			out = append(out, openai.UserMessage(textOf(mc)))
		case llms.RoleAI:
			toolCalls := convertToolCalls(mc.ToolCalls())
			if len(toolCalls) == 0 {
				out = append(out, openai.AssistantMessage(textOf(mc)))
				continue
			}
			asst := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: toolCalls,
			}
			if text := textOf(mc); text != "" {
				asst.Content.OfString = openai.String(text)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: asst})
		case llms.RoleTool:
			resp := mc.ToolResponse()
			if resp == nil {
				return nil, errors.Newf("tool message without a tool response part")
			}
			out = append(out, openai.ToolMessage(resp.Content, resp.ToolCallID))
		default:
			return nil, errors.Newf("role %v not supported", mc.Role)
		}
	}
	return out, nil
}

func convertToolCalls(calls []llms.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	out := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
	for _, tc := range calls {
		if tc.FunctionCall == nil {
			continue
		}
		out = append(out, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			},
		})
	}
	return out
}

func convertTools(tools []llms.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		params, _ := t.Function.Parameters.(map[string]any)
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  params,
			},
		})
	}
	return out
}

func textOf(mc llms.Message) string {
	var text string
	for _, p := range mc.Parts {
		if tp, ok := p.(llms.TextContent); ok {
			text += tp.Text
		}
	}
	return text
}
