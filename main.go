package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"miniHabitsAPI/handlers"
	"miniHabitsAPI/internal/database"
	"miniHabitsAPI/internal/genai"
	"miniHabitsAPI/internal/messaging"
	"miniHabitsAPI/middleware"
	"miniHabitsAPI/services"

	_ "net/http/pprof"
)

const defaultTimezone = "Asia/Jakarta"

var (
	dbPool              *pgxpool.Pool
	authService         *services.AuthService
	userService         *services.UserService
	habitService        *services.HabitService
	conversationService *services.ConversationService
	reminderService     *services.ReminderService
	genaiClient         *genai.Client
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	for _, key := range []string{"DATABASE_URL", "JWT_SECRET", "CRON_SECRET"} {
		if os.Getenv(key) == "" {
			log.Fatalf("%s environment variable is not set", key)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	dbPool, err = database.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := database.EnsureSchema(ctx, dbPool); err != nil {
		log.Fatal("Failed to ensure schema:", err)
	}
	log.Println("Successfully connected to Postgres")

	gateway := messaging.NewGowaClient(
		envOr("GOWA_URL", "https://gowa.leadflow.id"),
		os.Getenv("GOWA_USER"),
		os.Getenv("GOWA_PASS"),
	)

	authService = services.NewAuthService(dbPool)
	userService = services.NewUserService(dbPool, gateway)
	habitService = services.NewHabitService(dbPool)
	conversationService = services.NewConversationService(dbPool)
	reminderService = services.NewReminderService(
		services.NewPgReminderStore(dbPool),
		gateway,
		envOr("DEFAULT_TIMEZONE", defaultTimezone),
	)
	genaiClient = genai.NewClient()

	middleware.InitPrometheus()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	habitHandler := handlers.NewHabitHandler(habitService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	reminderHandler := handlers.NewReminderHandler(reminderService)
	aiHandler := handlers.NewAIHandler(genaiClient)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "mini-habits-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// The reminder job authenticates with the cron shared secret, not a
	// user session.
	api.HandleFunc("/cron/reminders", reminderHandler.Trigger).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/timezone", userHandler.UpdateTimezone).Methods("PUT")
	protected.HandleFunc("/user/phone", userHandler.SetPhone).Methods("POST")
	protected.HandleFunc("/user/phone/verify", userHandler.VerifyPhone).Methods("POST")

	protected.HandleFunc("/habits", habitHandler.List).Methods("GET")
	protected.HandleFunc("/habits", habitHandler.Create).Methods("POST")
	protected.HandleFunc("/habits/reorder", habitHandler.Reorder).Methods("PUT")
	protected.HandleFunc("/habits/{id}", habitHandler.Rename).Methods("PUT")
	protected.HandleFunc("/habits/{id}", habitHandler.Delete).Methods("DELETE")
	protected.HandleFunc("/habits/{id}/reminder", habitHandler.SetReminderTime).Methods("PUT")
	protected.HandleFunc("/habits/{id}/toggle", habitHandler.Toggle).Methods("POST")
	protected.HandleFunc("/habits/{id}/done", habitHandler.SetDone).Methods("PUT")
	protected.HandleFunc("/habits/{id}/note", habitHandler.UpsertNote).Methods("PUT")

	protected.HandleFunc("/conversations", conversationHandler.List).Methods("GET")
	protected.HandleFunc("/conversations", conversationHandler.Create).Methods("POST")
	protected.HandleFunc("/conversations/{id}", conversationHandler.Get).Methods("GET")
	protected.HandleFunc("/conversations/{id}", conversationHandler.Update).Methods("PUT")
	protected.HandleFunc("/conversations/{id}", conversationHandler.Delete).Methods("DELETE")

	protected.HandleFunc("/ai/analyze", aiHandler.Analyze).Methods("POST")
	protected.HandleFunc("/ai/generate-habits", aiHandler.GenerateHabits).Methods("POST")
	protected.HandleFunc("/ai/chat", aiHandler.Chat).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
