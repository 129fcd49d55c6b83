package chatcompletion

import (
	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// BuildMessages converts a provider request to chat-completions params.
// Tool results carry only their model rendering.
func BuildMessages(req harmony.ProviderRequest, handler ReasoningHandler) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{}

	if req.SystemPrompt != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.History {
		switch m := msg.(type) {
		case harmony.UserMessage:
			params.Messages = append(params.Messages, openai.UserMessage(m.Text()))
		case *harmony.UserMessage:
			params.Messages = append(params.Messages, openai.UserMessage(m.Text()))
		case harmony.AssistantMessage:
			params.Messages = append(params.Messages, convertAssistantMessage(m, handler))
		case *harmony.AssistantMessage:
			params.Messages = append(params.Messages, convertAssistantMessage(*m, handler))
		case harmony.ToolResultMessage:
			params.Messages = append(params.Messages, convertToolMessage(m))
		case *harmony.ToolResultMessage:
			params.Messages = append(params.Messages, convertToolMessage(*m))
		}
	}

	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, convertToolSpec(tool))
	}
	return params
}

func convertAssistantMessage(m harmony.AssistantMessage, handler ReasoningHandler) openai.ChatCompletionMessageParamUnion {
	msg := openai.ChatCompletionAssistantMessageParam{}

	var thinking []harmony.ThinkingPart
	var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
	for _, part := range m.Parts {
		switch p := part.(type) {
		case harmony.ThinkingPart:
			thinking = append(thinking, p)
		case harmony.ToolCallPart:
			toolCalls = append(toolCalls, convertToolCallPart(p))
		}
	}

	if handler != nil && len(thinking) > 0 {
		if key, value := handler.ConvertThinkingToExtra(thinking); key != "" && value != nil {
			msg.SetExtraFields(map[string]any{key: value})
		}
	}
	if text := m.Text(); text != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
	}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func convertToolCallPart(p harmony.ToolCallPart) openai.ChatCompletionMessageToolCallUnionParam {
	args := p.Arguments
	if args == "" {
		args = "{}"
	}
	return openai.ChatCompletionMessageToolCallUnionParam{
		OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
			ID: p.CallID,
			Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
				Name:      p.Name,
				Arguments: args,
			},
		},
	}
}

func convertToolMessage(m harmony.ToolResultMessage) openai.ChatCompletionMessageParamUnion {
	msg := openai.ToolMessage(m.Text(), m.CallID)
	if msg.OfTool != nil && m.Name != "" {
		msg.OfTool.SetExtraFields(map[string]any{"name": m.Name})
	}
	return msg
}

func convertToolSpec(spec harmony.ToolSpec) openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
		Name:        spec.Name,
		Description: openai.String(spec.Description),
		Parameters:  shared.FunctionParameters(spec.Parameters),
	})
}
