package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	apipipeline "financial_dashboard/pkg/api/pipeline"
	"financial_dashboard/pkg/core/bootstrap"
	"financial_dashboard/pkg/core/logging"
)

var (
	handler http.Handler
	once    sync.Once
	initErr error
)

func init() {
	// "NormalizeFinancials" is the entry point name configured in GCP.
	functions.HTTP("NormalizeFinancials", handleNormalize)
}

// main is required by the Go Functions Framework.
func main() {}

func handleNormalize(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var app *bootstrap.App
		app, initErr = bootstrap.New(context.Background(), bootstrap.Options{})
		if initErr != nil {
			return
		}
		h := apipipeline.NewHandler(app.Pipeline, logging.Component(app.Log, "function"))
		handler = apipipeline.CORS(http.HandlerFunc(h.HandleRun))
	})
	if initErr != nil {
		initLog := logging.New("error", false)
		initLog.Error().Err(initErr).Msg("function initialization failed")
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
