//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"
	"time"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/analyzer"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/cache"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/chunker"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/embedding"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/extractor"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/llm"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/memstore"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/vectorindex"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/resilience"
	"github.com/justineyoo1/PDFResearchAssistant/internal/usecase"
)

const dimension = 256

var assistant *usecase.Assistant

func newAssistant() (*usecase.Assistant, error) {
	index, err := vectorindex.New(dimension, domain.MetricCosine, nil, nil)
	if err != nil {
		return nil, err
	}
	chk, err := chunker.NewWindowChunker(1000, 200, chunker.UnitChar, 20)
	if err != nil {
		return nil, err
	}
	exec := resilience.NewExecutor(resilience.Policy{MaxAttempts: 1, MaxConcurrency: 1}, nil)

	return usecase.NewAssistant(usecase.Components{
		Repository: memstore.NewMemoryStore(),
		Index:      index,
		Extractor:  extractor.NewPlainExtractor(),
		Chunker:    chk,
		Tokenizer:  analyzer.NewTokenizer(),
		Embedder:   embedding.NewResilientEmbedder(embedding.NewHashEmbedder(dimension), exec, 100, nil),
		LLM:        llm.NewEchoLLM(3),
		Cache:      cache.NewQueryCache(64, time.Minute),
	}, usecase.Settings{
		TopK:        5,
		TokenBudget: 3000,
		Workers:     1,
		Retrieve: usecase.RetrieveOptions{
			CandidateMultiplier: 2,
			DedupEpsilon:        0.01,
		},
	})
}

func main() {
	var err error
	assistant, err = newAssistant()
	if err != nil {
		panic(err)
	}

	c := make(chan struct{})

	js.Global().Set("assistantIngest", js.FuncOf(ingestContent))
	js.Global().Set("assistantSearch", js.FuncOf(searchContent))
	js.Global().Set("assistantAsk", js.FuncOf(askQuestion))
	js.Global().Set("assistantDelete", js.FuncOf(deleteDocument))
	js.Global().Set("assistantList", js.FuncOf(listDocuments))
	js.Global().Set("assistantClear", js.FuncOf(clearAll))

	<-c
}

func ingestContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: assistantIngest(filename, content)")
	}

	filename := args[0].String()
	id, err := assistant.Ingest(context.Background(), []byte(args[1].String()), filename)
	if err != nil {
		return makeError(err.Error())
	}
	doc, _ := assistant.GetDocument(id)

	return makeResult(map[string]interface{}{
		"success":  true,
		"id":       id,
		"chunks":   doc.ChunkCount,
		"filename": filename,
	})
}

func topKArg(args []js.Value) int {
	if len(args) > 1 {
		return args[1].Int()
	}
	return 0
}

func searchContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: assistantSearch(query, [topK])")
	}

	query := args[0].String()
	results, err := assistant.Search(context.Background(), query, topKArg(args))
	if err != nil {
		return makeError("search failed: " + err.Error())
	}

	output := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		doc, _ := assistant.GetDocument(r.Chunk.DocID)
		output = append(output, map[string]interface{}{
			"filename": doc.Filename,
			"docId":    r.Chunk.DocID,
			"start":    r.Chunk.Span.Start,
			"end":      r.Chunk.Span.End,
			"score":    r.Score,
			"text":     r.Chunk.Text,
		})
	}

	return makeResult(map[string]interface{}{
		"results": output,
		"query":   query,
	})
}

func askQuestion(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: assistantAsk(question, [topK])")
	}

	answer, err := assistant.Ask(context.Background(), args[0].String(), topKArg(args))
	if err != nil {
		return makeError(err.Error())
	}
	data, _ := json.Marshal(answer)
	return string(data)
}

func deleteDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: assistantDelete(id)")
	}
	if err := assistant.DeleteDocument(args[0].String()); err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{"success": true})
}

func listDocuments(this js.Value, args []js.Value) interface{} {
	docs, _ := assistant.ListDocuments()

	files := make([]map[string]interface{}, len(docs))
	totalChunks := 0
	for i, doc := range docs {
		files[i] = map[string]interface{}{
			"id":       doc.ID,
			"filename": doc.Filename,
			"chunks":   doc.ChunkCount,
		}
		totalChunks += doc.ChunkCount
	}

	return makeResult(map[string]interface{}{
		"totalDocs":   len(docs),
		"totalChunks": totalChunks,
		"files":       files,
	})
}

func clearAll(this js.Value, args []js.Value) interface{} {
	fresh, err := newAssistant()
	if err != nil {
		return makeError(err.Error())
	}
	assistant.Close()
	assistant = fresh
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
