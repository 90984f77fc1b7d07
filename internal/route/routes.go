package route

import (
	"net/http"
	"os"
	"path/filepath"

	"parkingwatch/internal/config"
	"parkingwatch/internal/handler"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/middleware"
	"parkingwatch/internal/repository"
	"parkingwatch/internal/service"
	"parkingwatch/internal/service/websocket"
)

// StaticDir holds the web UI.
const StaticDir = "static"

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, cfg *config.Config, logger *logger.Logger,
	runRepo repository.RunRepository, intervalRepo repository.IntervalRepository) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))

	// API endpoints
	mux.HandleFunc("/api/process", handler.ProcessVideoHandler(manager, cfg, logger))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(hub, logger))
	mux.HandleFunc("/api/runs", handler.GetRunsHandler(runRepo, logger))
	mux.HandleFunc("/api/runs/intervals", handler.GetRunIntervalsHandler(runRepo, intervalRepo, logger))
	mux.HandleFunc("/api/runs/image", handler.ViewIntervalImageHandler(intervalRepo, logger))
	mux.HandleFunc("/api/runs/delete", handler.DeleteRunHandler(runRepo, manager, cfg, logger))

	// Log endpoints
	for level := range handler.LogLevels {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /login -> /static/login.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(cfg.Password, mux)
}
