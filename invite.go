package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	qrDefaultSize = 256
	qrMaxSize     = 1024
)

// InviteURL returns the link that opens room in the client
func InviteURL(publicURL, roomID string) string {
	return strings.TrimRight(publicURL, "/") + "/" + roomID
}

// requestBaseURL rebuilds the site's own URL when no public URL is configured
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// inviteHandler serves a PNG QR code of a room's invite link at /qr/{room}
func inviteHandler(hub *Hub, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("room")
		if hub.rooms.GetRoom(roomID) == nil {
			http.NotFound(w, r)
			return
		}
		size := qrDefaultSize
		if s := r.URL.Query().Get("size"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 64 || n > qrMaxSize {
				http.Error(w, "bad size", http.StatusBadRequest)
				return
			}
			size = n
		}
		base := publicURL
		if base == "" {
			base = requestBaseURL(r)
		}

		png, err := qrcode.Encode(InviteURL(base, roomID), qrcode.Medium, size)
		if err != nil {
			hub.log.Error("qr encode", zap.String("room", roomID), zap.Error(err))
			http.Error(w, "qr failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	}
}
