// Package store reads supplier and demand records and writes extracted keywords back.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/models"
)

// ErrRecordNotFound is returned when a keyword update matches no row.
var ErrRecordNotFound = errors.New("record not found")

// IsConnectionError reports whether err means the database could not be reached,
// as opposed to a statement that failed.
func IsConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// RecordStore is what the matching workers need from persistence.
type RecordStore interface {
	FetchAllSuppliers(ctx context.Context) ([]models.Supplier, error)
	FetchAllDemands(ctx context.Context) ([]models.Demand, error)
	UpdateSupplierKeywords(ctx context.Context, id, keywords string) error
	UpdateDemandKeywords(ctx context.Context, id, keywords string) error
}

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log.WithFields(map[string]interface{}{"component": "record-store"})}
}

const selectSuppliers = `
	SELECT id, company_name, service_type, industry, description,
	       patent, website, video_link, username, registered_at,
	       extracted_keywords, keyword_status
	FROM suppliers
	ORDER BY registered_at DESC, id`

const selectDemands = `
	SELECT id, organization_name, department, username, type, content,
	       budget, start_date, end_date, additional_requirements, registered_at,
	       extracted_keywords, keyword_status
	FROM demands
	ORDER BY registered_at DESC, id`

func (s *PostgresStore) FetchAllSuppliers(ctx context.Context) ([]models.Supplier, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, selectSuppliers)
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]models.Supplier, 0)
	for rows.Next() {
		var (
			sup                               models.Supplier
			name, serviceType, industry, desc sql.NullString
			patent, website, video, username  sql.NullString
			keywords, status                  sql.NullString
			registeredAt                      sql.NullTime
		)
		if err := rows.Scan(
			&sup.ID, &name, &serviceType, &industry, &desc,
			&patent, &website, &video, &username, &registeredAt,
			&keywords, &status,
		); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		sup.CompanyName = name.String
		sup.ServiceType = serviceType.String
		sup.Industry = industry.String
		sup.Description = desc.String
		sup.Patent = patent.String
		sup.Website = website.String
		sup.VideoLink = video.String
		sup.Username = username.String
		sup.RegisteredAt = registeredAt.Time
		sup.ExtractedKeywords = keywords.String
		sup.KeywordStatus = models.KeywordStatus(status.String)
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}

	s.logger.Debug("Fetched suppliers", map[string]interface{}{
		"count":      len(suppliers),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return suppliers, nil
}

func (s *PostgresStore) FetchAllDemands(ctx context.Context) ([]models.Demand, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, selectDemands)
	if err != nil {
		return nil, fmt.Errorf("query demands: %w", err)
	}
	defer rows.Close()

	demands := make([]models.Demand, 0)
	for rows.Next() {
		var (
			d                                 models.Demand
			org, dept, username, typ, content sql.NullString
			additional, keywords, status      sql.NullString
			budget                            sql.NullFloat64
			startDate, endDate, registeredAt  sql.NullTime
		)
		if err := rows.Scan(
			&d.ID, &org, &dept, &username, &typ, &content,
			&budget, &startDate, &endDate, &additional, &registeredAt,
			&keywords, &status,
		); err != nil {
			return nil, fmt.Errorf("scan demand: %w", err)
		}
		d.OrganizationName = org.String
		d.Department = dept.String
		d.Username = username.String
		d.Type = typ.String
		d.Content = content.String
		d.AdditionalRequirements = additional.String
		d.RegisteredAt = registeredAt.Time
		d.ExtractedKeywords = keywords.String
		d.KeywordStatus = models.KeywordStatus(status.String)
		if budget.Valid {
			b := budget.Float64
			d.Budget = &b
		}
		if !d.ValidBudget() {
			s.logger.Warn("Ignoring negative demand budget", map[string]interface{}{
				"demandId": d.ID,
				"budget":   budget.Float64,
			})
			d.Budget = nil
		}
		if startDate.Valid {
			t := startDate.Time
			d.StartDate = &t
		}
		if endDate.Valid {
			t := endDate.Time
			d.EndDate = &t
		}
		demands = append(demands, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate demands: %w", err)
	}

	s.logger.Debug("Fetched demands", map[string]interface{}{
		"count":      len(demands),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return demands, nil
}

func (s *PostgresStore) UpdateSupplierKeywords(ctx context.Context, id, keywords string) error {
	return s.updateKeywords(ctx, "suppliers", id, keywords)
}

func (s *PostgresStore) UpdateDemandKeywords(ctx context.Context, id, keywords string) error {
	return s.updateKeywords(ctx, "demands", id, keywords)
}

// updateKeywords stores keywords and moves keyword_status to completed.
// table is one of the two constants above, never caller input.
func (s *PostgresStore) updateKeywords(ctx context.Context, table, id, keywords string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET extracted_keywords = $1, keyword_status = $2
		WHERE id = $3`, table)

	res, err := s.db.ExecContext(ctx, query, strings.TrimSpace(keywords), string(models.KeywordStatusCompleted), id)
	if err != nil {
		return fmt.Errorf("update %s keywords: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s keywords: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrRecordNotFound)
	}
	return nil
}
