// Package chat orchestrates the question-answer pipeline: context
// retrieval, prompt construction, generation, and conversation memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/vhoang/docbot/llm"
	"github.com/vhoang/docbot/memory"
)

// ErrEmptyQuestion rejects blank questions before any external call.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// Service answers questions for one conversation session.
type Service struct {
	assembler *Assembler
	llm       llm.Client
	memory    *memory.Memory
	logger    *log.Logger

	// recordFailures appends failed generations to memory instead of
	// dropping them. Off by default so error text never feeds back into
	// later prompts.
	recordFailures bool
}

func NewService(assembler *Assembler, llmClient llm.Client, mem *memory.Memory, recordFailures bool, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		assembler:      assembler,
		llm:            llmClient,
		memory:         mem,
		logger:         logger,
		recordFailures: recordFailures,
	}
}

// Ask runs one question through the pipeline. The returned error is only
// for invalid input; generation failures come back inside the Result so the
// chat surface stays responsive. Memory is updated once, after a successful
// generation — a failed or cancelled ask leaves it unchanged.
func (s *Service) Ask(ctx context.Context, question string, useContext bool) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	if s.llm == nil {
		return Result{}, fmt.Errorf("llm client is not configured")
	}

	history := s.memory.Render()

	var prompt string
	if useContext {
		contextText := s.assembler.Assemble(ctx, question)
		prompt = BuildPrompt(contextText, history, question)
	} else {
		prompt = BuildPlainPrompt(history, question)
	}

	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		genErr := fmt.Errorf("generate answer: %w", err)
		s.logger.Printf("generation failed: %v", err)
		result := Result{Err: genErr}
		if s.recordFailures {
			s.memory.Append(question, result.Text())
		}
		return result, nil
	}

	answer = strings.TrimSpace(answer)
	s.memory.Append(question, answer)
	return Result{Answer: answer}, nil
}

// ClearHistory discards the session's conversation memory.
func (s *Service) ClearHistory() {
	s.memory.Clear()
}

// History returns the session's exchanges in chronological order.
func (s *Service) History() []memory.Exchange {
	return s.memory.Exchanges()
}
