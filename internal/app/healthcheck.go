package app

import (
	"context"
	"net/http"
	"time"

	"github.com/metinatakli/seat-booking/api"
)

func (app *Application) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "UP", http.StatusOK

	if err := app.ping(r.Context()); err != nil {
		app.logError(r, err)
		status, code = "DOWN", http.StatusServiceUnavailable
	}

	ledger := app.config.Ledger
	if ledger == "" {
		ledger = LedgerMemory
	}

	resp := api.HealthcheckResponse{
		Status: status,
		SystemInfo: api.SystemInfo{
			Version:     version,
			Environment: app.config.Env,
			Ledger:      ledger,
		},
	}

	err := app.writeJSON(w, code, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if app.db != nil {
		if err := app.db.Ping(ctx); err != nil {
			return err
		}
	}

	if app.redis != nil {
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}

func (app *Application) GetOpenAPIDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(api.Document())
}
