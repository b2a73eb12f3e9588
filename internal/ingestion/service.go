package ingestion

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coopfare/engine/internal/fare"
)

// ImportResult is returned from a successful trip batch import.
type ImportResult struct {
	BatchID       string      `json:"batch_id"`
	TripsPriced   int         `json:"trips_priced"`
	TripsRejected int         `json:"trips_rejected"`
	Rejections    []Rejection `json:"rejections,omitempty"`
}

// Rejection flags one trip the batch could not price. Per-trip errors never
// abort the batch.
type Rejection struct {
	TripID string `json:"trip_id"`
	Reason string `json:"reason"`
}

// Service imports batches of finalized trips from the trip record provider
// and prices each one through the fare calculator.
type Service struct {
	db         *sql.DB
	calculator *fare.Calculator
}

// NewService creates a new trip import service.
func NewService(db *sql.DB, calculator *fare.Calculator) *Service {
	return &Service{db: db, calculator: calculator}
}

// ImportTrips parses a JSON batch of finalized trips and prices each trip.
// Batches are idempotent by file hash: replaying the same payload is a
// no-op.
func (s *Service) ImportTrips(data []byte) (*ImportResult, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.batchExists(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		log.Printf("[ingestion] Batch %s already imported, skipping", hash[:12])
		return &ImportResult{BatchID: "already-imported"}, nil
	}

	var trips []fare.TripInput
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	if len(trips) == 0 {
		return nil, fmt.Errorf("batch contains no trips")
	}

	result := &ImportResult{BatchID: uuid.NewString()}
	for _, trip := range trips {
		if _, err := s.calculator.ComputeTripFare(trip); err != nil {
			// Flag the trip and continue; one bad trip does not abort the
			// batch.
			log.Printf("[ingestion] WARNING: rejected trip %s: %v", trip.TripID, err)
			result.TripsRejected++
			result.Rejections = append(result.Rejections, Rejection{
				TripID: trip.TripID,
				Reason: err.Error(),
			})
			continue
		}
		result.TripsPriced++
	}

	if _, err := s.db.Exec(
		`INSERT INTO trip_import_batches (id, file_hash, trip_count, ingested_at)
		 VALUES (?,?,?,?)`,
		result.BatchID, hash, result.TripsPriced, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return nil, fmt.Errorf("record batch: %w", err)
	}

	log.Printf("[ingestion] Imported batch %s: %d priced, %d rejected",
		result.BatchID, result.TripsPriced, result.TripsRejected)
	return result, nil
}

func (s *Service) batchExists(hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM trip_import_batches WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}
