package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"pdf-chat-server/internal/metrics"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth     *AuthHandler
	Document *DocumentHandler
	Chat     *ChatHandler
	Billing  *BillingHandler
	Admin    *AdminHandler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, authMiddleware func(http.Handler) http.Handler, m *metrics.Metrics, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	if m != nil {
		router.Use(m.Middleware)
		router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "pdf-chat-server"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Routes with their own authentication
	api.HandleFunc("/webhooks/stripe", h.Billing.StripeWebhook).Methods(http.MethodPost)
	api.HandleFunc("/admin/users/{id}/subscription-events", h.Admin.ListSubscriptionEvents).Methods(http.MethodGet)

	// Protected routes (require authentication)
	protected := api.PathPrefix("").Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/me", h.Auth.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/usage", h.Auth.GetUsage).Methods(http.MethodGet)

	protected.HandleFunc("/documents", h.Document.ListDocuments).Methods(http.MethodGet)
	protected.HandleFunc("/documents", h.Document.UploadDocument).Methods(http.MethodPost)
	protected.HandleFunc("/documents/{id}/deactivate", h.Document.DeactivateDocument).Methods(http.MethodPost)
	protected.HandleFunc("/documents/{id}", h.Document.DeleteDocument).Methods(http.MethodDelete)

	protected.HandleFunc("/chats", h.Chat.ListChats).Methods(http.MethodGet)
	protected.HandleFunc("/chats/messages", h.Chat.SendMessage).Methods(http.MethodPost)
	protected.HandleFunc("/chats/{id}/messages", h.Chat.ListMessages).Methods(http.MethodGet)
	protected.HandleFunc("/chats/{id}/response", h.Chat.GetResponse).Methods(http.MethodPost)

	protected.HandleFunc("/billing/checkout", h.Billing.CreateCheckoutSession).Methods(http.MethodPost)
	protected.HandleFunc("/billing/portal", h.Billing.CreatePortalSession).Methods(http.MethodPost)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
