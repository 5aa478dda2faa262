package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"plan-gate-server/internal/domain"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	billingHandler *BillingHandler,
	webhookHandler *WebhookHandler,
	featureHandler *FeatureHandler,
	authMiddleware func(http.Handler) http.Handler,
	allowedOrigins []string,
	logger domain.Logger,
) http.Handler {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware, LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "plan-gate-server"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// The provider signs webhooks; there is no bearer token.
	api.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripe).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/billing/plan", billingHandler.GetPlan).Methods("GET")
	protected.HandleFunc("/billing/checkout", billingHandler.StartCheckout).Methods("POST")
	protected.HandleFunc("/billing/portal", billingHandler.OpenPortal).Methods("POST")

	protected.HandleFunc("/features/{feature}/cooldown", featureHandler.GetCooldown).Methods("GET")

	protected.HandleFunc("/ai/notes", featureHandler.Notes).Methods("POST")
	protected.HandleFunc("/ai/subject-lines", featureHandler.SubjectLines).Methods("POST")
	protected.HandleFunc("/ai/viral-images", featureHandler.ViralImages).Methods("POST")
	protected.HandleFunc("/ai/image-gen", featureHandler.ImageGen).Methods("POST")
	protected.HandleFunc("/ai/image-edit", featureHandler.ImageEdit).Methods("POST")

	protected.HandleFunc("/functions/pro", featureHandler.ProFunction).Methods("POST")
	protected.HandleFunc("/functions/legendary", featureHandler.LegendaryFunction).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"Retry-After",
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler(router)
}
