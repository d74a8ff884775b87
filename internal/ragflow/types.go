package ragflow

const (
	DefaultPage                   = 1
	DefaultPageSize               = 30
	DefaultSimilarityThreshold    = 0.2
	DefaultVectorSimilarityWeight = 0.3
	DefaultTopK                   = 1024
)

// MetadataFilter is one condition of a metadata_condition block.
type MetadataFilter struct {
	Name               string `json:"name" validate:"required"`
	ComparisonOperator string `json:"comparison_operator" validate:"required"`
	Value              any    `json:"value,omitempty"`
}

type MetadataCondition struct {
	Conditions []MetadataFilter `json:"conditions" validate:"dive"`
}

// RetrievalRequest is the body of POST /api/v1/retrieval. Zero numeric fields
// are replaced with the server defaults by WithDefaults.
type RetrievalRequest struct {
	Question               string             `json:"question" validate:"required"`
	DatasetIDs             []string           `json:"dataset_ids,omitempty"`
	DocumentIDs            []string           `json:"document_ids,omitempty"`
	Page                   int                `json:"page" validate:"gte=1"`
	PageSize               int                `json:"page_size" validate:"gte=1"`
	SimilarityThreshold    float64            `json:"similarity_threshold" validate:"gte=0,lte=1"`
	VectorSimilarityWeight float64            `json:"vector_similarity_weight" validate:"gte=0,lte=1"`
	TopK                   int                `json:"top_k" validate:"gte=1"`
	RerankID               string             `json:"rerank_id,omitempty"`
	Keyword                bool               `json:"keyword"`
	Highlight              bool               `json:"highlight"`
	CrossLanguages         []string           `json:"cross_languages,omitempty"`
	MetadataCondition      *MetadataCondition `json:"metadata_condition,omitempty"`
	UseKG                  bool               `json:"use_kg"`
}

// WithDefaults returns a copy of r with unset paging and scoring fields
// filled in.
func (r RetrievalRequest) WithDefaults() RetrievalRequest {
	if r.Page <= 0 {
		r.Page = DefaultPage
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.SimilarityThreshold == 0 {
		r.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if r.VectorSimilarityWeight == 0 {
		r.VectorSimilarityWeight = DefaultVectorSimilarityWeight
	}
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	return r
}

type Chunk struct {
	Content           string   `json:"content"`
	ContentLtks       string   `json:"content_ltks,omitempty"`
	DocumentID        string   `json:"document_id,omitempty"`
	DocumentKeyword   string   `json:"document_keyword,omitempty"`
	Highlight         string   `json:"highlight,omitempty"`
	ID                string   `json:"id,omitempty"`
	ImageID           string   `json:"image_id,omitempty"`
	ImportantKeywords []string `json:"important_keywords,omitempty"`
	KBID              string   `json:"kb_id,omitempty"`
	Similarity        *float64 `json:"similarity,omitempty"`
	TermSimilarity    *float64 `json:"term_similarity,omitempty"`
	VectorSimilarity  *float64 `json:"vector_similarity,omitempty"`
}

type DocAgg struct {
	Count   int    `json:"count"`
	DocID   string `json:"doc_id"`
	DocName string `json:"doc_name"`
}

type RetrievalData struct {
	Chunks  []Chunk  `json:"chunks"`
	DocAggs []DocAgg `json:"doc_aggs"`
	Total   int      `json:"total"`
}

// RetrievalResponse is the envelope Ragflow wraps every answer in. Code is
// zero on success.
type RetrievalResponse struct {
	Code    int            `json:"code"`
	Data    *RetrievalData `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ChunkSummary is the trimmed chunk shape returned to MCP clients.
type ChunkSummary struct {
	Content    string   `json:"content"`
	Highlight  *string  `json:"highlight"`
	DocumentID *string  `json:"document_id"`
	DocKeyword *string  `json:"doc_keyword"`
	Similarity *float64 `json:"similarity"`
}

type Summary struct {
	Total   int            `json:"total"`
	Chunks  []ChunkSummary `json:"chunks"`
	DocAggs []DocAgg       `json:"doc_aggs"`
}
