package universe

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/KeshavPeri/tickle/internal/models"
)

// DefaultSearchLimit caps search results.
const DefaultSearchLimit = 10

// Index is an in-memory full-text index over ticker, name, sector and industry.
type Index struct {
	index  bleve.Index
	lookup Lookup
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	stockMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = false
	textFieldMapping.Index = true
	for _, field := range []string{"ticker", "name", "sector", "industry"} {
		stockMapping.AddFieldMappingsAt(field, textFieldMapping)
	}

	indexMapping.DefaultMapping = stockMapping
	return indexMapping
}

// NewIndex indexes every stock by ticker.
func NewIndex(stocks []models.Stock) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for _, s := range stocks {
		doc := map[string]interface{}{
			"ticker":   s.Ticker,
			"name":     s.Name,
			"sector":   s.Sector,
			"industry": s.Industry,
		}
		if err := batch.Index(s.Ticker, doc); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to add %s to batch: %w", s.Ticker, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return &Index{index: idx, lookup: NewLookup(stocks)}, nil
}

// Search ranks exact ticker matches first, then ticker prefixes, then name
// matches and name prefixes.
func (i *Index) Search(q string, limit int) ([]models.Stock, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Stock{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	lower := strings.ToLower(q)

	exact := bleve.NewTermQuery(lower)
	exact.SetField("ticker")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("ticker")
	prefix.SetBoost(5.0)

	name := bleve.NewMatchQuery(q)
	name.SetField("name")
	name.SetBoost(3.0)

	queries := []query.Query{exact, prefix, name}
	for _, word := range strings.Fields(lower) {
		namePrefix := bleve.NewPrefixQuery(word)
		namePrefix.SetField("name")
		namePrefix.SetBoost(1.5)
		queries = append(queries, namePrefix)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]models.Stock, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if s, ok := i.lookup.Find(hit.ID); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
