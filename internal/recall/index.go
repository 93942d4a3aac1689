package recall

import (
	"math"
	"sort"

	"github.com/thebtf/chatlens/pkg/models"
)

// IndexVersion is bumped whenever the index layout or scoring changes so
// older cache artifacts are never reused.
const IndexVersion = 2

// Vector is a sparse, L2-normalized TF-IDF vector.
type Vector map[string]float64

// Index is a TF-IDF index over a filtered set of documents.
type Index struct {
	IDF         map[string]float64 `json:"idf"`
	Documents   []models.Document  `json:"documents"`
	Vectors     []Vector           `json:"vectors"`
	Version     int                `json:"version"`
	CorpusEmpty bool               `json:"corpus_empty"`
}

// Hit is one scored document.
type Hit struct {
	Document models.Document `json:"document"`
	Score    float64         `json:"score"`
}

// BuildIndex computes document frequencies and normalized vectors.
// idf = ln((N+1)/(df+1)) + 1.
func BuildIndex(docs []models.Document) *Index {
	idx := &Index{
		Version:   IndexVersion,
		Documents: docs,
		Vectors:   make([]Vector, len(docs)),
		IDF:       map[string]float64{},
	}
	tfs := make([]map[string]float64, len(docs))
	df := map[string]int{}
	for i, d := range docs {
		tfs[i] = termFrequencies(Tokenize(d.Text))
		for term := range tfs[i] {
			df[term]++
		}
	}
	n := float64(len(docs))
	for term, count := range df {
		idx.IDF[term] = math.Log((n+1)/(float64(count)+1)) + 1
	}
	for i, tf := range tfs {
		idx.Vectors[i] = idx.weigh(tf)
	}
	return idx
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.Documents)
}

func (x *Index) weigh(tf map[string]float64) Vector {
	v := make(Vector, len(tf))
	var norm float64
	for term, f := range tf {
		idf, ok := x.IDF[term]
		if !ok {
			continue
		}
		w := f * idf
		v[term] = w
		norm += w * w
	}
	if norm == 0 {
		return Vector{}
	}
	norm = math.Sqrt(norm)
	for term := range v {
		v[term] /= norm
	}
	return v
}

// Vectorize weighs a query the same way documents are weighed. Terms the
// corpus has never seen are dropped.
func (x *Index) Vectorize(text string) Vector {
	return x.weigh(termFrequencies(Tokenize(text)))
}

// Search ranks documents by cosine similarity to text. Only positive scores
// are returned; ties go to the most recent document, then the smaller id.
// A limit <= 0 returns every hit.
func (x *Index) Search(text string, limit int) []Hit {
	if x.Len() == 0 {
		return nil
	}
	q := x.Vectorize(text)
	if len(q) == 0 {
		return nil
	}
	var hits []Hit
	for i, v := range x.Vectors {
		score := dot(q, v)
		if score > 0 {
			hits = append(hits, Hit{Document: x.Documents[i], Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Document.TimestampMs != b.Document.TimestampMs {
			return a.Document.TimestampMs > b.Document.TimestampMs
		}
		return a.Document.ID < b.Document.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// dot iterates the query, which is the smaller vector in practice.
func dot(q, v Vector) float64 {
	var s float64
	for term, w := range q {
		s += w * v[term]
	}
	return s
}
