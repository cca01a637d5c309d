package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vhoang/docbot/index"
)

// NoContext is the fixed sentinel the assembler returns when retrieval
// finds nothing or fails. The prompt builder and tests match on it exactly,
// so it must never be mixed into real context.
const NoContext = "No relevant information found in the database."

// Assembler turns a question into a context string by querying the index.
type Assembler struct {
	index  Searcher
	topK   int
	logger *log.Logger
}

// Searcher is the slice of the embedding index the assembler needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]index.Result, error)
}

func NewAssembler(searcher Searcher, topK int, logger *log.Logger) *Assembler {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{index: searcher, topK: topK, logger: logger}
}

// Assemble retrieves the top matches and renders them as enumerated blocks
// in descending-similarity order. Retrieval failure degrades to the
// NoContext sentinel: a broken index must not block an answer.
func (a *Assembler) Assemble(ctx context.Context, question string) string {
	results, err := a.index.Search(ctx, question, a.topK)
	if err != nil {
		a.logger.Printf("retrieval degraded to empty context: %v", err)
		return NoContext
	}
	if len(results) == 0 {
		return NoContext
	}

	blocks := make([]string, len(results))
	for i, result := range results {
		blocks[i] = fmt.Sprintf("[%d] %s", i+1, result.Text)
	}
	return strings.Join(blocks, "\n\n")
}
