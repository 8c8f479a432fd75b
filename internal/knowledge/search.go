package knowledge

import (
	"fmt"

	"github.com/blevesearch/bleve"
)

// searchIndex is an in-memory BM25 index over one collection. It is built
// lazily from the backend and thrown away whenever the collection changes.
type searchIndex struct {
	idx bleve.Index
}

type indexedDoc struct {
	Text string `json:"text"`
	Name string `json:"name"`
}

func buildIndex(docs []Document) (*searchIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	batch := idx.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, indexedDoc{Text: d.Text, Name: d.Meta[MetaName]}); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index %s: %w", d.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, fmt.Errorf("index batch: %w", err)
	}
	return &searchIndex{idx: idx}, nil
}

// search returns the ids of the k best matches for q, best first.
func (si *searchIndex) search(q string, k int) ([]string, error) {
	query := bleve.NewMatchQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := si.idx.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (si *searchIndex) close() {
	si.idx.Close()
}

// search ranks docs against q with the cached index for kind, building one
// from docs when none is cached. gen is the write generation observed before
// docs were listed: an index built from a snapshot that a write has since
// overtaken serves this call only and is not cached. Searching under s.mu
// keeps invalidate from closing an index in use.
func (s *Store) search(kind Kind, gen uint64, docs []Document, q string, k int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	si, ok := s.indexes[kind]
	if !ok {
		var err error
		if si, err = buildIndex(docs); err != nil {
			return nil, err
		}
		if gen == s.gen {
			s.indexes[kind] = si
		} else {
			defer si.close()
		}
	}
	return si.search(q, k)
}

// generation returns the current write generation.
func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Store) invalidate(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if si, ok := s.indexes[kind]; ok {
		si.close()
		delete(s.indexes, kind)
	}
}

func (s *Store) dropIndexes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	for kind, si := range s.indexes {
		si.close()
		delete(s.indexes, kind)
	}
}
