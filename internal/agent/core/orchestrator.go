package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/agent/telemetry"
	"github.com/sense-app/sense-ai-chat/provider"
)

const orchestratorSystemPrompt = `You are a shopping assistant. Work out what the user
wants to buy, investigate products and stores with your tools, and answer with
concrete recommendations. Start by reflecting on the request, search and read to
build knowledge, use research for deeper product comparison, and use shop to
collect final listings. When the knowledge bank holds enough products to answer
well, stop calling tools and write your answer.`

// FailureMessage is streamed to the client when a turn aborts on a
// fatal error.
const FailureMessage = "Oops, an error occured!"

// Orchestrator drives the bounded tool loop for one chat turn: prompt
// from the knowledge bank, let the model pick tools, dispatch, fold
// results back, repeat until the model answers or the budget runs out.
type Orchestrator struct {
	Provider  provider.Provider
	Model     string
	Tools     Registry
	MaxSteps  int
	Logger    *log.Logger
	Telemetry *telemetry.Telemetry
}

// Run executes one turn. The returned string is the final assistant
// text, already streamed; on fatal error the failure message has been
// streamed and the error describes the cause.
func (o *Orchestrator) Run(ctx context.Context, bank *KnowledgeBank, stream Stream) (string, error) {
	started := time.Now()
	final, steps, err := o.run(ctx, bank, stream)
	o.Telemetry.RecordTurn("", steps, time.Since(started), err)
	if err != nil {
		_ = stream.Text(FailureMessage)
		return "", err
	}
	return final, nil
}

func (o *Orchestrator) run(ctx context.Context, bank *KnowledgeBank, stream Stream) (string, int, error) {
	maxSteps := o.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 20
	}

	messages := make([]provider.Message, 0, len(bank.History)+2)
	messages = append(messages, provider.Message{Role: "system", Content: orchestratorSystemPrompt})
	messages = append(messages, bank.History...)

	for step := 0; step < maxSteps; step++ {
		prompted := append(messages, provider.Message{Role: "system", Content: bank.Prompt()})
		defs := o.Tools.Defs(bank.AvailableActions())

		llmStart := time.Now()
		completion, err := o.Provider.ChatWithTools(ctx, o.Model, prompted, defs)
		o.Telemetry.RecordLLMRequest(o.Model, time.Since(llmStart), err)
		if err != nil {
			return "", step, fmt.Errorf("orchestration step %d: %w", step, err)
		}

		if len(completion.ToolCalls) == 0 {
			bank.Complete()
			if err := streamText(stream, completion.Content); err != nil {
				return "", step, err
			}
			return completion.Content, step, nil
		}

		messages = append(messages, provider.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		// Tool calls run one at a time; side effects land in the order
		// the calls complete.
		for _, call := range completion.ToolCalls {
			result, err := o.Tools.Dispatch(ctx, call, bank, stream)
			if err != nil {
				o.Logger.Printf("tool %s failed: %v", call.Name, err)
				result = fmt.Sprintf("Tool %s failed: %v. Continue with what you have.", call.Name, err)
			}
			messages = append(messages, provider.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	// Step budget exhausted: answer with whatever has accumulated.
	bank.Complete()
	final := o.summarize(bank)
	if err := streamText(stream, final); err != nil {
		return "", maxSteps, err
	}
	return final, maxSteps, nil
}

// summarize builds a closing answer from the bank when the model never
// finalized within the step budget.
func (o *Orchestrator) summarize(bank *KnowledgeBank) string {
	var b strings.Builder
	b.WriteString("Here is what I found so far:\n\n")
	if len(bank.Products) > 0 {
		b.WriteString("Products:\n")
		for _, p := range bank.Products {
			fmt.Fprintf(&b, "- %s: %.2f %s", p.Name, p.Price, p.CurrencyCode)
			if p.StoreName != "" {
				fmt.Fprintf(&b, " at %s", p.StoreName)
			}
			b.WriteString("\n")
		}
	}
	if len(bank.Learnings) > 0 {
		b.WriteString("\nNotes:\n")
		for _, l := range bank.Learnings {
			b.WriteString("- ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	if len(bank.Products) == 0 && len(bank.Learnings) == 0 {
		b.WriteString("I could not gather enough information to recommend specific products. Could you narrow down what you are looking for?")
	}
	return b.String()
}

// streamText writes text word by word so the client renders it
// incrementally, matching how provider deltas would arrive.
func streamText(stream Stream, text string) error {
	if text == "" {
		return nil
	}
	words := strings.Split(text, " ")
	for i, w := range words {
		chunk := w
		if i < len(words)-1 {
			chunk += " "
		}
		if err := stream.Text(chunk); err != nil {
			return err
		}
	}
	return nil
}
