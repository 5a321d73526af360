package main

import (
	"net/http"
	"os"
	"os/signal"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/quickchat-app/quickchat/chat"
	"github.com/quickchat-app/quickchat/config"
	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/persistence"
	"github.com/quickchat-app/quickchat/web"
	"github.com/quickchat-app/quickchat/ws"
	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	cfg, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if cfg.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}

	store, err := persistence.NewStore(cfg)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	registry := chat.NewRegistry()
	typing := chat.NewTypingTracker(cfg.MessagesConfig.TypingExpiry)
	hub := ws.NewHub(registry)
	coordinator := chat.NewCoordinator(registry, typing, store, hub, chat.Options{
		HistoryLimit:  cfg.HistoryConfig.RecentLimit,
		EditWindow:    cfg.MessagesConfig.EditWindow,
		TypingExpiry:  cfg.MessagesConfig.TypingExpiry,
		TypingSweep:   cfg.MessagesConfig.TypingSweep,
		MaxMessageLen: cfg.MessagesConfig.MaxLength,
	})
	coordinator.Run()
	defer coordinator.Stop()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		coordinator.Stop()
		store.Close()
		globals.AppLogger.Error("interrupted!")
		os.Exit(1)
	}()

	handler := web.NewHandler(store, cfg)
	router := mux.NewRouter()
	router.HandleFunc("/api/rooms", handler.CreateRoom).Methods(http.MethodPost)
	router.HandleFunc("/api/rooms/{code:[0-9]{6}}", handler.GetRoom).Methods(http.MethodGet)
	router.HandleFunc("/api/upload", handler.Upload).Methods(http.MethodPost)
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsConfig.Dir))))
	router.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		websocketHandler(w, r, hub, coordinator)
	}).Methods(http.MethodGet)

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, router)
	} else {
		err = http.ListenAndServe(*addr, router)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

// Handle incoming websockets. Joining a room happens via the join-room event
// after the upgrade, one connection may rebind to another room later.
func websocketHandler(w http.ResponseWriter, r *http.Request, hub *ws.Hub, coordinator *chat.Coordinator) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}

	client := ws.NewClient(hub, coordinator, conn)
	hub.Add(client)
	globals.AppLogger.Debug("client connected", "conn", client.Id)

	go client.WriteLoop()
	client.ReadLoop()
	globals.AppLogger.Debug("client disconnected", "conn", client.Id)
}
