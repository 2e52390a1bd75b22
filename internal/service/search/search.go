// Package search keeps the post index in Elasticsearch in step with the
// database and answers full-text queries. Indexing is best-effort: the
// database row is the source of truth, index failures are logged by the
// caller and never fail the request.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Frusadev/frusablog-backend/internal/models"
)

type PostDoc struct {
	PostID         string   `json:"post_id"`
	AuthorUsername string   `json:"author_username"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Content        string   `json:"content"`
	Tags           []string `json:"tags"`
	Published      bool     `json:"published"`
}

func DocFromPost(post *models.Post, tags []string) PostDoc {
	return PostDoc{
		PostID:         post.ID,
		AuthorUsername: post.AuthorUsername,
		Title:          post.Title,
		Description:    post.Description,
		Content:        post.Content,
		Tags:           tags,
		Published:      post.Published,
	}
}

func IndexPost(ctx context.Context, es *elasticsearch.Client, index string, doc PostDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal doc: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(body),
		es.Index.WithDocumentID(doc.PostID),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search: index post %s: %w", doc.PostID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index post %s: %s", doc.PostID, res.Status())
	}
	return nil
}

func DeletePost(ctx context.Context, es *elasticsearch.Client, index, postID string) error {
	res, err := es.Delete(index, postID, es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search: delete post %s: %w", postID, err)
	}
	defer res.Body.Close()
	// A missing document is fine: the post may never have been indexed.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("search: delete post %s: %s", postID, res.Status())
	}
	return nil
}

func Search(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []PostDoc, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"title^3", "tags^2", "description", "content"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"published": true},
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("search: %s: %s", res.Status(), strings.TrimSpace(string(msg)))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source PostDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	posts := make([]PostDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		posts[i] = hit.Source
	}
	return r.Hits.Total.Value, posts, nil
}
