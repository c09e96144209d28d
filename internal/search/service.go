package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSermon indexes a sermon (fire-and-forget to Meilisearch).
func (s *Service) IndexSermon(rec SermonRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSermon(rec); err != nil {
			log.Printf("search: index sermon %s: %v", rec.ID, err)
		}
	}()
}

// IndexBlog indexes a blog post (fire-and-forget to Meilisearch).
func (s *Service) IndexBlog(rec BlogRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexBlog(rec); err != nil {
			log.Printf("search: index blog %s: %v", rec.ID, err)
		}
	}()
}

// DeleteSermon removes a sermon from the search index (fire-and-forget).
func (s *Service) DeleteSermon(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSermon(id); err != nil {
			log.Printf("search: delete sermon %s: %v", id, err)
		}
	}()
}

// DeleteBlog removes a blog post from the search index (fire-and-forget).
func (s *Service) DeleteBlog(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteBlog(id); err != nil {
			log.Printf("search: delete blog %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(sermons []SermonRecord, blogs []BlogRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(sermons) > 0 {
		if err := s.meili.IndexSermons(sermons); err != nil {
			log.Printf("search: reindex sermons: %v", err)
		}
	}
	if len(blogs) > 0 {
		if err := s.meili.IndexBlogs(blogs); err != nil {
			log.Printf("search: reindex blogs: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	sermons, blogs, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(sermons, blogs)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
