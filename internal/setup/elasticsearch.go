package setup

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/rowantree/go-chunkvault/internal/config"
)

// InitElasticsearchClient connects the optional Elasticsearch audit sink
// consumed by internal/plugins/stats.ESSink. Only called when
// cfg.Elasticsearch.Enabled is set.
func InitElasticsearchClient(cfg *config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("setup: create elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("setup: connect elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("setup: elasticsearch cluster returned error status: %s", res.Status())
	}

	return client, nil
}
