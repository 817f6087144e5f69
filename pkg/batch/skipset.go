package batch

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/photon-img/photon/pkg/record"
)

// LoadExistingHashes reads outputPath and returns the set of
// content_hash values already present, so those files can be skipped
// (spec §4.12 step 1). Missing file is not an error — it just means no
// hashes are known yet. For each format, a full array-parse is tried
// first; if that fails, the file is re-read line by line (JSONL),
// logging a warning per corrupt line instead of failing the whole load.
func LoadExistingHashes(outputPath string, logger *slog.Logger) (map[string]bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}

	hashes := map[string]bool{}

	var asArray []record.ProcessedImage
	if err := json.Unmarshal(data, &asArray); err == nil {
		for _, r := range asArray {
			hashes[r.ContentHash] = true
		}
		return hashes, nil
	}

	f, err := os.Open(outputPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record.OutputRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("batch: skipping corrupt JSONL line in existing output", "line", lineNo, "error", err)
			continue
		}
		if rec.Type == record.RecordTypeCore && rec.Core != nil {
			hashes[rec.Core.ContentHash] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hashes, nil
}
