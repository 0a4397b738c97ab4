// Package search publishes curated matches to Elasticsearch for listing screens.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/models"
)

// MatchDocument is the indexed form of a curated match.
type MatchDocument struct {
	MatchID             string    `json:"matchId"`
	RunID               string    `json:"runId"`
	Strategy            string    `json:"strategy"`
	SupplierID          string    `json:"supplierId"`
	SupplierName        string    `json:"supplierName"`
	SupplierIndustry    string    `json:"supplierIndustry,omitempty"`
	ServiceType         string    `json:"serviceType,omitempty"`
	DemandID            string    `json:"demandId"`
	DemandOrganization  string    `json:"demandOrganization"`
	DemandType          string    `json:"demandType,omitempty"`
	Score               int       `json:"score"`
	KeywordScore        int       `json:"keywordScore"`
	ServiceTypeScore    int       `json:"serviceTypeScore"`
	IndustryScore       int       `json:"industryScore"`
	MatchedKeywords     []string  `json:"matchedKeywords"`
	MatchedServiceTypes []string  `json:"matchedServiceTypes,omitempty"`
	Rationale           string    `json:"rationale"`
	IndexedAt           time.Time `json:"indexedAt"`
}

// ItemError describes one document the cluster rejected.
type ItemError struct {
	DocID  string `json:"docId"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkResult summarizes one IndexRun call.
type BulkResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

type MatchIndexer struct {
	client    *elasticsearch.Client
	index     string
	batchSize int
	logger    logger.Logger
	now       func() time.Time
}

func NewMatchIndexer(client *elasticsearch.Client, index string, log logger.Logger) *MatchIndexer {
	return &MatchIndexer{
		client:    client,
		index:     index,
		batchSize: 500,
		logger:    log.WithFields(map[string]interface{}{"component": "match-indexer", "index": index}),
		now:       time.Now,
	}
}

func toDocument(runID string, m models.Match, at time.Time) MatchDocument {
	kw := m.MatchedKeywords
	if kw == nil {
		kw = []string{}
	}
	return MatchDocument{
		MatchID:             m.ID,
		RunID:               runID,
		Strategy:            m.Strategy,
		SupplierID:          m.Supplier.ID,
		SupplierName:        m.Supplier.CompanyName,
		SupplierIndustry:    m.Supplier.Industry,
		ServiceType:         m.Supplier.ServiceType,
		DemandID:            m.Demand.ID,
		DemandOrganization:  m.Demand.OrganizationName,
		DemandType:          m.Demand.Type,
		Score:               m.Score,
		KeywordScore:        m.KeywordScore,
		ServiceTypeScore:    m.ServiceTypeScore,
		IndustryScore:       m.IndustryScore,
		MatchedKeywords:     kw,
		MatchedServiceTypes: m.MatchedServiceTypes,
		Rationale:           m.Rationale,
		IndexedAt:           at,
	}
}

// IndexRun bulk-indexes matches with the match id as document id.
// A transport or HTTP failure aborts with an error; per-document rejections are reported in BulkResult.
func (i *MatchIndexer) IndexRun(ctx context.Context, runID string, matches []models.Match) (*BulkResult, error) {
	result := &BulkResult{}
	if len(matches) == 0 {
		return result, nil
	}
	at := i.now().UTC()

	for start := 0; start < len(matches); start += i.batchSize {
		end := start + i.batchSize
		if end > len(matches) {
			end = len(matches)
		}
		if err := i.indexBatch(ctx, runID, matches[start:end], at, result); err != nil {
			return result, err
		}
	}

	i.logger.Info("Bulk index completed", map[string]interface{}{
		"runId":     runID,
		"total":     len(matches),
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	return result, nil
}

func (i *MatchIndexer) indexBatch(ctx context.Context, runID string, batch []models.Match, at time.Time, result *BulkResult) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range batch {
		meta := map[string]map[string]string{"index": {"_index": i.index, "_id": m.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		if err := enc.Encode(toDocument(runID, m, at)); err != nil {
			return fmt.Errorf("encode match %s: %w", m.ID, err)
		}
	}

	res, err := i.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		i.client.Bulk.WithContext(ctx),
		i.client.Bulk.WithIndex(i.index),
	)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("bulk request rejected: %s: %s", res.Status(), bytes.TrimSpace(body))
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}

	if !bulkResp.Errors {
		result.Succeeded += len(batch)
		return nil
	}
	for _, item := range bulkResp.Items {
		for _, v := range item {
			if v.Status >= 200 && v.Status < 300 {
				result.Succeeded++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, ItemError{DocID: v.ID, Type: v.Error.Type, Reason: v.Error.Reason})
		}
	}
	return nil
}
