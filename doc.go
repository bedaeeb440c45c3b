// Plotline - Retrieval-Grounded Real Estate Assistant in Go
//
// Plotline turns a CSV of property listings into a conversational assistant
// whose answers are grounded in the listings themselves. Records are packed
// into overlapping chunks, embedded once, and persisted in a content-addressed
// SQLite index; at query time the assistant classifies each message, retrieves
// the most similar chunks for property questions, and asks the generation
// service to answer strictly from that context.
//
// # Quick Start
//
// Build the index from a dataset:
//
//	go run ./examples/indexdataset -config config.yaml
//
// Then chat against it:
//
//	go run ./examples/chat -config config.yaml
//
// Programmatic use wires the pipeline packages together:
//
//	model, _ := openai.New()
//	lc, _ := embeddings.NewEmbedder(model)
//	embedder := embedding.NewLangChainEmbedder(lc)
//
//	store, _ := index.LoadSQLite("plotline.db")
//	a := assistant.New(
//		model,
//		classify.New(model),
//		retrieval.New(store, embedder),
//		prompt.New(),
//	)
//	answer := a.Handle(ctx, "3 bedroom houses in DHA Karachi")
//
// # Packages
//
//   - property: dataset records and CSV loading
//   - chunker: record-aligned overlapping chunking
//   - embedding: embedder interface, langchaingo adapter, deterministic mock
//   - index: vector index stores (memory, SQLite) and the idempotent indexer
//   - retrieval: similarity search over an index
//   - classify: property-search vs general-chat routing
//   - prompt: grounded prompt assembly
//   - session: conversation history
//   - assistant: the orchestrator tying the pipeline together
//   - retry, log, config: cross-cutting support
package plotline
