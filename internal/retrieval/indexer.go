package retrieval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"leannerd/internal/embedding"
	"leannerd/internal/logging"
	"leannerd/internal/types"
)

// indexBatchSize bounds how many records are embedded and inserted at
// a time, keeping memory flat on large theorem dumps.
const indexBatchSize = 64

// LoadJSONL reads theorem records from a JSON-lines file, one record
// per line. Blank lines are skipped; a malformed line is an error.
func LoadJSONL(path string) ([]types.TheoremRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []types.TheoremRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var rec types.TheoremRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid record: %w", path, line, err)
		}
		if rec.Name == "" {
			return nil, fmt.Errorf("%s:%d: record missing name", path, line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// BuildIndex embeds records and inserts them into the store in
// batches. The embedded text is name + signature + informal statement,
// which is also what queries are matched against.
func BuildIndex(ctx context.Context, store *TheoremStore, engine embedding.Engine, records []types.TheoremRecord) error {
	timer := logging.StartTimer(logging.CategoryRetrieval, "BuildIndex")
	defer timer.Stop()

	for start := 0; start < len(records); start += indexBatchSize {
		end := min(start+indexBatchSize, len(records))
		batch := records[start:end]

		indexed := make([]IndexedRecord, len(batch))
		if engine != nil {
			texts := make([]string, len(batch))
			for i, rec := range batch {
				texts[i] = embedText(rec)
			}
			vectors, err := engine.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed batch at record %d: %w", start, err)
			}
			for i := range batch {
				indexed[i] = IndexedRecord{Record: batch[i], Embedding: vectors[i]}
			}
		} else {
			for i := range batch {
				indexed[i] = IndexedRecord{Record: batch[i]}
			}
		}

		if err := store.BulkInsert(ctx, indexed); err != nil {
			return err
		}
		logging.Retrieval("indexed %d/%d records", end, len(records))
	}
	return nil
}

func embedText(rec types.TheoremRecord) string {
	text := rec.Name
	if rec.Signature != "" {
		text += "\n" + rec.Signature
	}
	if rec.Informal != "" {
		text += "\n" + rec.Informal
	}
	return text
}
