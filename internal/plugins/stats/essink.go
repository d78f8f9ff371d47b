package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// esSink is the concrete ESSink backed by a *elasticsearch.Client, built
// by internal/setup.InitElasticsearchClient when cfg.Elasticsearch.Enabled
// is set.
type esSink struct {
	client *elasticsearch.Client
	index  string
}

// NewESSink wraps client so Plugin can mirror terminal lifecycle events
// into the given index. One document per event, no refresh requested —
// this is a fire-and-forget audit trail, not a read-after-write path.
func NewESSink(client *elasticsearch.Client, index string) ESSink {
	return &esSink{client: client, index: index}
}

func (s *esSink) IndexEvent(ctx context.Context, doc EventDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("stats: marshal event doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: fmt.Sprintf("%s-%s-%d", doc.TaskID, doc.Event, doc.Timestamp),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("stats: index event: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("stats: elasticsearch returned error status: %s", res.Status())
	}
	return nil
}
