package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultSermon ResultType = "sermon"
	ResultBlog   ResultType = "blog"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	CategoryID string     `json:"categoryId,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// Query describes a search request. PublishedOnly is set for member callers
// so draft blog posts never leak through search.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	PublishedOnly bool
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexSermon(s SermonRecord) error
	IndexBlog(b BlogRecord) error
	DeleteSermon(id string) error
	DeleteBlog(id string) error
}

// SermonRecord is the data we index for a sermon.
type SermonRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
}

// BlogRecord is the data we index for a blog post.
type BlogRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}
