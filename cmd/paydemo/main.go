// Command paydemo wires the orchestration engine against a scripted
// in-memory gateway and walks one order through reserve, charge and credit,
// persisting the ledger through the postgres store when DATABASE_URL is
// set.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/config"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway/gatewaytest"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/ledgerstore"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/logging"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/processor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("paydemo", cfg.LogLevel, cfg.AppEnv)
	ctx := context.Background()

	var store *ledgerstore.Store
	if cfg.DatabaseURL != "" {
		db, err := connectDB(cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = ledgerstore.New(db)
	}

	if err := run(ctx, cfg, store); err != nil {
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, store *ledgerstore.Store) error {
	currency := money.Currency(cfg.DemoCurrency)

	providerConfig := uuid.New()
	resolver := gatewaytest.Resolver{
		providerConfig: gatewaytest.NewProvider(map[gateway.Kind]gateway.Capability{
			gateway.KindReserve:       gatewaytest.Approve(),
			gateway.KindCancelReserve: gatewaytest.Approve(),
			gateway.KindCharge:        gatewaytest.Approve(),
			gateway.KindCredit:        gatewaytest.Approve(),
		}),
	}

	reservations := processor.NewReservationProcessor(resolver)
	cancels := processor.NewCancelReservationProcessor(resolver)
	modifications := processor.NewModifyReservationProcessor(resolver, reservations, cancels)
	charges := processor.NewChargeProcessor(resolver, reservations, modifications, cancels)
	credits := processor.NewCreditProcessor(resolver)

	instrument := &domain.OrderPaymentInstrument{
		GUID: uuid.New(),
		Instrument: domain.PaymentInstrument{
			ProviderConfigGUID: providerConfig,
			Data:               map[string]string{"token": "demo-token"},
		},
	}

	referenceID := "demo-" + uuid.NewString()[:8]
	var ledger []*domain.PaymentEvent

	persist := func(events []*domain.PaymentEvent) error {
		ledger = append(ledger, events...)
		if store == nil {
			return nil
		}
		return store.AppendEvents(ctx, events)
	}

	reserveAmount, err := money.NewFromString(cfg.DemoReserveAmount, currency)
	if err != nil {
		return err
	}
	resp, err := reservations.Reserve(ctx, &processor.Request{
		Ledger:       ledger,
		Amount:       reserveAmount,
		OrderContext: gateway.OrderContext{ReferenceID: referenceID},
		Instruments:  []*domain.OrderPaymentInstrument{instrument},
	})
	if err != nil {
		return err
	}
	if err := persist(resp.Events); err != nil {
		return err
	}
	slog.Info("reserved", "reference_id", referenceID, "amount", reserveAmount.String(), "success", resp.Success)

	chargeAmount, err := money.NewFromString(cfg.DemoChargeAmount, currency)
	if err != nil {
		return err
	}
	resp, err = charges.ChargePayment(ctx, &processor.Request{
		Ledger:       ledger,
		Amount:       chargeAmount,
		OrderContext: gateway.OrderContext{ReferenceID: referenceID},
		Instruments:  []*domain.OrderPaymentInstrument{instrument},
		FinalPayment: true,
	})
	if err != nil {
		return err
	}
	if err := persist(resp.Events); err != nil {
		return err
	}
	slog.Info("charged", "reference_id", referenceID, "amount", chargeAmount.String(), "success", resp.Success)

	creditAmount, err := money.NewFromString(cfg.DemoCreditAmount, currency)
	if err != nil {
		return err
	}
	resp, err = credits.Credit(ctx, &processor.Request{
		Ledger:       ledger,
		Amount:       creditAmount,
		OrderContext: gateway.OrderContext{ReferenceID: referenceID},
	})
	if err != nil {
		return err
	}
	if err := persist(resp.Events); err != nil {
		return err
	}
	slog.Info("credited", "reference_id", referenceID, "amount", creditAmount.String(), "success", resp.Success)

	if store != nil {
		persisted, err := store.LoadLedger(ctx, referenceID)
		if err != nil {
			return err
		}
		slog.Info("ledger persisted", "reference_id", referenceID, "events", len(persisted))
	}

	return nil
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(ledgerstore.Schema); err != nil {
		return nil, err
	}
	return db, nil
}
