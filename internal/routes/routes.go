package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daybook-app/daybook-api/internal/handlers"
	"github.com/daybook-app/daybook-api/internal/models"
)

// NewRouter sets up the API routes. Everything under /api except signup and
// login requires a bearer token.
func NewRouter(
	auth *handlers.AuthHandler,
	tasks *handlers.TaskHandler,
	birthdays *handlers.BirthdayHandler,
	reminders *handlers.ReminderHandler,
	notifications *handlers.NotificationHandler,
	settings *handlers.SettingsHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	// Account
	api.HandleFunc("/me", auth.Me).Methods(http.MethodGet)

	// Tasks
	api.HandleFunc("/tasks", tasks.Create).Methods(http.MethodPost)
	api.HandleFunc("/tasks", tasks.List).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{entityID}", tasks.Get).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{entityID}", tasks.Update).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{entityID}", tasks.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{entityID}/complete", tasks.Complete).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{entityID}/archive", tasks.Archive).Methods(http.MethodPost)

	// Birthdays
	api.HandleFunc("/birthdays", birthdays.Create).Methods(http.MethodPost)
	api.HandleFunc("/birthdays", birthdays.List).Methods(http.MethodGet)
	api.HandleFunc("/birthdays/{entityID}", birthdays.Get).Methods(http.MethodGet)
	api.HandleFunc("/birthdays/{entityID}", birthdays.Update).Methods(http.MethodPut)
	api.HandleFunc("/birthdays/{entityID}", birthdays.Delete).Methods(http.MethodDelete)

	// Reminders: PUT attaches or reschedules, DELETE retires
	api.HandleFunc("/tasks/{entityID}/reminder", reminders.Set(models.CategoryTasks)).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{entityID}/reminder", reminders.Remove(models.CategoryTasks)).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{entityID}/reminder", reminders.Status(models.CategoryTasks)).Methods(http.MethodGet)
	api.HandleFunc("/birthdays/{entityID}/reminder", reminders.Set(models.CategoryBirthdays)).Methods(http.MethodPut)
	api.HandleFunc("/birthdays/{entityID}/reminder", reminders.Remove(models.CategoryBirthdays)).Methods(http.MethodDelete)
	api.HandleFunc("/birthdays/{entityID}/reminder", reminders.Status(models.CategoryBirthdays)).Methods(http.MethodGet)
	api.HandleFunc("/reminders/counts", reminders.Counts).Methods(http.MethodGet)

	// Notifications
	api.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/unread-count", notifications.UnreadCount).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}/read", notifications.MarkRead).Methods(http.MethodPost)

	// Settings
	api.HandleFunc("/settings/notifications", settings.Get).Methods(http.MethodGet)
	api.HandleFunc("/settings/notifications/master", settings.SetMaster).Methods(http.MethodPut)
	api.HandleFunc("/settings/notifications/category", settings.SetCategory).Methods(http.MethodPut)
	api.HandleFunc("/settings/notifications/permission", settings.RecordPermission).Methods(http.MethodPut)
	api.HandleFunc("/settings/notifications/history", settings.ClearHistory).Methods(http.MethodDelete)

	return router
}
