// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"

	"github.com/tlogd/tlog/date"
)

// ESWriter indexes each record as one document in an Elasticsearch
// index, keyed by its tlog id so re-delivery of the same id overwrites
// rather than duplicates.
type ESWriter struct {
	client *elasticsearch.Client
	index  string
}

// NewESWriter returns a Writer that indexes documents into index.
func NewESWriter(client *elasticsearch.Client, index string) *ESWriter {
	return &ESWriter{client: client, index: index}
}

// Write implements Writer. If the record has no "rec" field, one is
// synthesized so every document indexed by this writer carries a
// stable recording identifier even when the recorder didn't set one.
func (w *ESWriter) Write(id uint64, line []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimRight(line, "\n"), &doc); err != nil {
		return fmt.Errorf("transport: es writer: %w", err)
	}
	if _, ok := doc["rec"]; !ok {
		recJSON, _ := json.Marshal(uuid.New().String())
		doc["rec"] = recJSON
	}
	labelJSON, _ := json.Marshal(date.FromTime(time.Now()).SessionLabel())
	doc["recorded_at"] = labelJSON
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      w.index,
		DocumentID: strconv.FormatUint(id, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(context.Background(), w.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("transport: es writer: %s", res.Status())
	}
	return nil
}

// ESReader replays records previously written by ESWriter, paging
// through an index in ascending id order.
type ESReader struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
	minLabel string // recorded_at lower bound, exclusive of filter when empty

	buf      []esHit
	pos      int
	lastID   uint64
	haveLast bool
	done     bool
}

type esHit struct {
	ID     uint64
	Source json.RawMessage
}

// NewESReader returns a Reader over index, fetching pageSize documents
// per underlying search request.
func NewESReader(client *elasticsearch.Client, index string, pageSize int) *ESReader {
	return &ESReader{client: client, index: index, pageSize: pageSize}
}

// Since restricts the reader to documents recorded at or after cutoff,
// a label produced by date.Time.SessionLabel (lexically sortable, so a
// plain string range query suffices). It must be called before the
// first Read.
func (r *ESReader) Since(cutoff date.Time) *ESReader {
	r.minLabel = cutoff.SessionLabel()
	return r
}

// Read implements Reader. A gap in the id sequence between pages ends
// the stream cleanly, since it means a concurrent writer's documents
// haven't been indexed (refreshed) yet.
func (r *ESReader) Read() ([]byte, bool, error) {
	if r.pos >= len(r.buf) {
		if r.done {
			return nil, false, nil
		}
		if err := r.fetchPage(); err != nil {
			return nil, false, err
		}
		if len(r.buf) == 0 {
			r.done = true
			return nil, false, nil
		}
	}

	hit := r.buf[r.pos]
	if r.haveLast && hit.ID != r.lastID+1 {
		r.done = true
		return nil, false, nil
	}
	r.lastID = hit.ID
	r.haveLast = true
	r.pos++
	return hit.Source, true, nil
}

func (r *ESReader) fetchPage() error {
	query := fmt.Sprintf(`{"sort":[{"id":"asc"}],"size":%d`, r.pageSize)
	if r.haveLast {
		query += fmt.Sprintf(`,"search_after":[%d]`, r.lastID)
	}
	if r.minLabel != "" {
		labelJSON, _ := json.Marshal(r.minLabel)
		query += fmt.Sprintf(`,"query":{"range":{"recorded_at":{"gte":%s}}}`, labelJSON)
	}
	query += "}"

	res, err := r.client.Search(
		r.client.Search.WithContext(context.Background()),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader([]byte(query))),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("transport: es reader: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return err
	}

	r.buf = r.buf[:0]
	r.pos = 0
	for _, h := range parsed.Hits.Hits {
		var doc struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return fmt.Errorf("transport: es reader: %w", err)
		}
		var id uint64
		if err := json.Unmarshal(doc.ID, &id); err != nil {
			return fmt.Errorf("transport: es reader: document missing numeric id: %w", err)
		}
		r.buf = append(r.buf, esHit{ID: id, Source: h.Source})
	}
	return nil
}
