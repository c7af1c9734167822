package indexer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EventsCSV renders records as CSV and returns the payload with its SHA-256
// checksum. Attributes are flattened into sorted key=value pairs.
func EventsCSV(records []EventRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write([]string{"seq", "type", "created_at", "attributes"}); err != nil {
		return nil, "", err
	}
	for _, rec := range records {
		evt, err := rec.Event()
		if err != nil {
			return nil, "", err
		}
		keys := make([]string, 0, len(evt.Attributes))
		for k := range evt.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + evt.Attributes[k]
		}
		row := []string{
			strconv.FormatUint(rec.Seq, 10),
			rec.Type,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			strings.Join(pairs, ";"),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

// EventsJSONL renders records as JSON Lines with a SHA-256 checksum.
func EventsJSONL(records []EventRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, rec := range records {
		evt, err := rec.Event()
		if err != nil {
			return nil, "", err
		}
		payload := map[string]interface{}{
			"seq":        rec.Seq,
			"type":       rec.Type,
			"created_at": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			"attributes": evt.Attributes,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	return checksummed(buffer.Bytes())
}

func checksummed(data []byte) ([]byte, string, error) {
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
