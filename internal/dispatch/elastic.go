package dispatch

import "context"

// DocumentIndexer is satisfied by database.ElasticsearchClient.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// ElasticIndexer writes one analytics document per handled delivery.
type ElasticIndexer struct {
	client DocumentIndexer
	index  string
}

func NewElasticIndexer(client DocumentIndexer, index string) *ElasticIndexer {
	return &ElasticIndexer{client: client, index: index}
}

func (i *ElasticIndexer) IndexEvent(ctx context.Context, ev IndexedEvent) error {
	return i.client.IndexDocument(ctx, i.index, ev.EventID+":"+ev.Outcome, ev)
}
