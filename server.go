package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var uuidPathRe = regexp.MustCompile(`^/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
	statsWindowDays         = 30
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ServerOptions configures SetupRoutes
type ServerOptions struct {
	ClientDir string // static client files; empty serves no client
	PublicURL string // base of invite links; empty derives it per request
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, opts ServerOptions) *http.ServeMux {
	mux := http.NewServeMux()

	if opts.ClientDir != "" {
		// Serve static files with no-cache so browsers always revalidate
		fs := http.FileServer(http.Dir(opts.ClientDir))
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			// SPA: serve index.html for root and room paths
			if r.URL.Path == "/" || uuidPathRe.MatchString(r.URL.Path) {
				http.ServeFile(w, r, filepath.Join(opts.ClientDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("upgrade", zap.String("remote", ip), zap.Error(err))
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("GET /qr/{room}", inviteHandler(hub, opts.PublicURL))
	mux.HandleFunc("GET /api/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.rooms.ListRooms())
	})
	mux.HandleFunc("GET /api/leaderboard", leaderboardHandler(hub))
	mux.HandleFunc("GET /api/stats", statsHandler(hub))

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(v)
}

// leaderboardHandler serves /api/leaderboard?by=wins&limit=10
func leaderboardHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub.db == nil {
			writeJSON(w, []LeaderboardEntry{})
			return
		}
		limit := defaultLeaderboardLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxLeaderboardLimit)
		}
		entries, err := hub.db.GetLeaderboard(r.URL.Query().Get("by"), limit)
		if err != nil {
			hub.log.Error("leaderboard", zap.Error(err))
			http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, entries)
	}
}

// StatsResponse is the body of /api/stats
type StatsResponse struct {
	Connections   int              `json:"connections"`
	Rooms         int              `json:"rooms"`
	SignedIn      int              `json:"signedIn"`
	ActivePlayers int              `json:"activePlayers"`
	Rounds        RoundAnalytics   `json:"rounds"`
	Events        map[string]int   `json:"events"`
	Spells        []SpellAnalytics `json:"spells"`
}

// statsHandler serves live counts plus the last month of analytics
func statsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatsResponse{
			Connections: hub.ClientCount(),
			Rooms:       hub.rooms.Count(),
			SignedIn:    hub.OnlineCount(),
			Events:      map[string]int{},
			Spells:      []SpellAnalytics{},
		}
		if a := hub.analytics; a != nil {
			var err error
			if resp.ActivePlayers, err = a.ActivePlayers(statsWindowDays); err != nil {
				hub.log.Warn("active players", zap.Error(err))
			}
			if resp.Rounds, err = a.RoundStats(statsWindowDays); err != nil {
				hub.log.Warn("round stats", zap.Error(err))
			}
			if events, err := a.EventCounts(statsWindowDays); err == nil {
				resp.Events = events
			}
			if spells, err := a.PopularSpells(10); err == nil {
				resp.Spells = spells
			}
		}
		writeJSON(w, resp)
	}
}
