// Package ledgerstore persists payment-event ledgers in postgres. It lives
// on the caller side of the engine's contract: processors return new events
// and the caller appends old ledger + new events here, re-loading the full
// ordered history before the next operation. The engine itself never
// touches this package.
package ledgerstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

// Schema creates the ledger table. seq preserves append order within an
// order independent of event timestamps.
const Schema = `
CREATE TABLE IF NOT EXISTS payment_events (
	seq                 BIGSERIAL PRIMARY KEY,
	guid                UUID NOT NULL UNIQUE,
	parent_guid         UUID,
	reference_id        TEXT NOT NULL,
	payment_type        TEXT NOT NULL,
	payment_status      TEXT NOT NULL,
	amount              NUMERIC NOT NULL,
	currency            TEXT NOT NULL,
	instrument          JSONB,
	original_instrument BOOLEAN NOT NULL DEFAULT FALSE,
	temporary_failure   BOOLEAN NOT NULL DEFAULT FALSE,
	external_message    TEXT NOT NULL DEFAULT '',
	internal_message    TEXT NOT NULL DEFAULT '',
	event_data          JSONB,
	created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payment_events_reference_id_idx
	ON payment_events (reference_id, seq);
`

const eventColumns = `guid, parent_guid, reference_id, payment_type, payment_status,
	amount, currency, instrument, original_instrument, temporary_failure,
	external_message, internal_message, event_data, created_at`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendEvents persists the events a processor produced, in order, in one
// transaction. Events are append-only: there is no update path.
func (s *Store) AppendEvents(ctx context.Context, events []*domain.PaymentEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("AppendEvents: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range events {
		if err := insertEvent(ctx, tx, e); err != nil {
			return fmt.Errorf("AppendEvents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("AppendEvents: commit: %w", err)
	}
	return nil
}

// LoadLedger returns an order's full event history in append order.
func (s *Store) LoadLedger(ctx context.Context, referenceID string) ([]*domain.PaymentEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM payment_events
		WHERE reference_id = $1 ORDER BY seq`,
		referenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("LoadLedger: %w", err)
	}
	defer rows.Close()

	var ledger []*domain.PaymentEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("LoadLedger: %w", err)
		}
		ledger = append(ledger, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadLedger: %w", err)
	}
	return ledger, nil
}

type instrumentRecord struct {
	GUID               uuid.UUID         `json:"guid"`
	ProviderConfigGUID uuid.UUID         `json:"provider_config_guid"`
	Data               map[string]string `json:"data,omitempty"`
	SingleReservePerPI bool              `json:"single_reserve_per_pi"`
	Limit              *string           `json:"limit,omitempty"`
}

func insertEvent(ctx context.Context, tx *sql.Tx, e *domain.PaymentEvent) error {
	var instrument []byte
	if e.Instrument != nil {
		rec := instrumentRecord{
			GUID:               e.Instrument.GUID,
			ProviderConfigGUID: e.Instrument.Instrument.ProviderConfigGUID,
			Data:               e.Instrument.Instrument.Data,
			SingleReservePerPI: e.Instrument.Instrument.SingleReservePerPI,
		}
		if e.Instrument.Limited() {
			limit := e.Instrument.Limit.Amount.String()
			rec.Limit = &limit
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("insertEvent: marshal instrument: %w", err)
		}
		instrument = b
	}

	var eventData []byte
	if e.EventData != nil {
		b, err := json.Marshal(e.EventData)
		if err != nil {
			return fmt.Errorf("insertEvent: marshal event data: %w", err)
		}
		eventData = b
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.GUID, e.ParentGUID, e.ReferenceID, e.Type, e.Status,
		e.Amount.Amount, string(e.Amount.Currency), instrument,
		e.OriginalInstrument, e.TemporaryFailure,
		e.ExternalMessage, e.InternalMessage, eventData, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insertEvent: %s: %w", e.GUID, err)
	}
	return nil
}

func scanEvent(rows *sql.Rows) (*domain.PaymentEvent, error) {
	var (
		e          domain.PaymentEvent
		currency   string
		instrument []byte
		eventData  []byte
	)
	err := rows.Scan(
		&e.GUID, &e.ParentGUID, &e.ReferenceID, &e.Type, &e.Status,
		&e.Amount.Amount, &currency, &instrument,
		&e.OriginalInstrument, &e.TemporaryFailure,
		&e.ExternalMessage, &e.InternalMessage, &eventData, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanEvent: %w", err)
	}
	e.Amount.Currency = money.Currency(currency)

	if instrument != nil {
		var rec instrumentRecord
		if err := json.Unmarshal(instrument, &rec); err != nil {
			return nil, fmt.Errorf("scanEvent: unmarshal instrument: %w", err)
		}
		inst := &domain.OrderPaymentInstrument{
			GUID: rec.GUID,
			Instrument: domain.PaymentInstrument{
				ProviderConfigGUID: rec.ProviderConfigGUID,
				Data:               rec.Data,
				SingleReservePerPI: rec.SingleReservePerPI,
			},
		}
		if rec.Limit != nil {
			limit, err := money.NewFromString(*rec.Limit, e.Amount.Currency)
			if err != nil {
				return nil, fmt.Errorf("scanEvent: instrument limit: %w", err)
			}
			inst.Limit = &limit
		}
		e.Instrument = inst
	}

	if eventData != nil {
		if err := json.Unmarshal(eventData, &e.EventData); err != nil {
			return nil, fmt.Errorf("scanEvent: unmarshal event data: %w", err)
		}
	}

	return &e, nil
}
