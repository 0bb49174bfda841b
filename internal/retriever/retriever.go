// Package retriever finds previously answered questions similar to a new
// one, so the agent can show the model a worked example.
package retriever

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"evalbot/internal/logger"
)

// Document is a ranked search hit.
type Document struct {
	Content string
	Source  string
	Score   float64
}

type Retriever struct {
	store    *Store
	embedder Embedder
	topK     int
}

func New(store *Store, embedder Embedder, topK int) (*Retriever, error) {
	if store == nil || embedder == nil {
		return nil, errors.New("retriever needs a store and an embedder")
	}
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{store: store, embedder: embedder, topK: topK}, nil
}

// Search embeds query and returns at most topK documents, best first. Only
// documents embedded with the current model are compared.
func (r *Retriever) Search(ctx context.Context, query string) ([]Document, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vectors))
	}

	stored, err := r.store.List(ctx, r.embedder.Model())
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	results := make([]Document, 0, len(stored))
	for _, doc := range stored {
		results = append(results, Document{
			Content: doc.Content,
			Source:  doc.Source,
			Score:   CosineSimilarity(vectors[0], doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > r.topK {
		results = results[:r.topK]
	}
	return results, nil
}

// metadataRecord is one line of a GAIA-style metadata.jsonl file.
type metadataRecord struct {
	TaskID      string `json:"task_id"`
	Question    string `json:"Question"`
	FinalAnswer string `json:"Final answer"`
}

const importBatchSize = 64

// Import reads JSON lines of {task_id, Question, Final answer}, embeds them
// and stores them as "Question : ...\n\nFinal answer : ..." documents.
// It returns the number of documents stored.
func (r *Retriever) Import(ctx context.Context, in io.Reader) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var batch []StoredDocument
	total := 0
	line := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}
		vectors, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
			batch[i].Model = r.embedder.Model()
		}
		if err := r.store.Insert(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		logger.Infof("Indexed %d documents", total)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec metadataRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Question) == "" {
			logger.Warnf("Skipping line %d without a question", line)
			continue
		}

		batch = append(batch, StoredDocument{
			Content: fmt.Sprintf("Question : %s\n\nFinal answer : %s", rec.Question, rec.FinalAnswer),
			Source:  rec.TaskID,
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// Store exposes the underlying store, e.g. for Count and Clear.
func (r *Retriever) Store() *Store { return r.store }
