package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cjeanneret/PriceScan/internal/debug"
	"github.com/cjeanneret/PriceScan/internal/logic/capture"
	"github.com/cjeanneret/PriceScan/internal/logic/controller"
	"github.com/cjeanneret/PriceScan/internal/logic/session"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// previewQuality is the JPEG quality of the live preview frames.
const previewQuality = 70

// App is the controller surface exposed over HTTP.
type App interface {
	Snapshot() controller.State
	SelectTab(tab controller.Tab) error
	Capture(ctx context.Context) (*capture.CapturedItem, error)
	Delete(id string) error
	Item(id string) (capture.CapturedItem, error)
	SetOfflineMode(on bool)
	ToggleOfflineMode() bool
	Stats() controller.Stats
	Frame() (image.Image, error)
	SessionState() session.State
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	ActiveTab   controller.Tab         `json:"active_tab"`
	OfflineMode bool                   `json:"offline_mode"`
	Session     string                 `json:"session"`
	Items       []capture.CapturedItem `json:"items"`
	Stats       controller.Stats       `json:"stats"`
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type offlineRequest struct {
	OfflineMode *bool `json:"offline_mode"`
}

type offlineResponse struct {
	OfflineMode bool `json:"offline_mode"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	App         App
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, app App, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		App:         app,
		staticFS:    staticFS,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

// decodeBody reads a small JSON body; oversized or malformed bodies are a 400.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func listItems(items []capture.CapturedItem, withImages bool) []capture.CapturedItem {
	out := make([]capture.CapturedItem, len(items))
	for i, it := range items {
		if !withImages {
			it = it.WithoutImage()
		}
		out[i] = it
	}
	return out
}

func wantImages(r *http.Request) bool {
	v := r.URL.Query().Get("images")
	return v == "1" || v == "true"
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleState handles GET /api/state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	st := h.App.Snapshot()
	writeJSON(w, http.StatusOK, StateResponse{
		ActiveTab:   st.ActiveTab,
		OfflineMode: st.OfflineMode,
		Session:     h.App.SessionState().String(),
		Items:       listItems(st.Items, wantImages(r)),
		Stats:       h.App.Stats(),
	})
}

// HandleTab handles PUT /api/tab {"tab":"gallery"}.
func (h *Handlers) HandleTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.App.SelectTab(controller.Tab(req.Tab)); err != nil {
		if errors.Is(err, controller.ErrUnknownTab) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.HandleState(w, r)
}

// HandleCapture handles POST /api/capture. A camera that is not ready is not
// an error: the response is 204 and nothing is added.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	item, err := h.App.Capture(r.Context())
	switch {
	case errors.Is(err, controller.ErrCaptureBusy):
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	case err != nil:
		debug.Error(err)
		http.Error(w, "capture failed", http.StatusInternalServerError)
		return
	case item == nil:
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleItems handles GET /api/items.
func (h *Handlers) HandleItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listItems(h.App.Snapshot().Items, wantImages(r)))
}

// HandleDeleteItem handles DELETE /api/items/{id}.
func (h *Handlers) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.App.Delete(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, controller.ErrItemNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleItemImage handles GET /api/items/{id}/image and returns the raw JPEG.
func (h *Handlers) HandleItemImage(w http.ResponseWriter, r *http.Request) {
	it, err := h.App.Item(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	mime, data, err := capture.DecodeDataURI(it.ImageData)
	if err != nil {
		http.Error(w, "item has no image", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.Write(data)
}

// HandleSetOffline handles PUT /api/settings/offline {"offline_mode":true}.
func (h *Handlers) HandleSetOffline(w http.ResponseWriter, r *http.Request) {
	var req offlineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OfflineMode == nil {
		http.Error(w, "offline_mode is required", http.StatusBadRequest)
		return
	}
	h.App.SetOfflineMode(*req.OfflineMode)
	writeJSON(w, http.StatusOK, offlineResponse{OfflineMode: *req.OfflineMode})
}

// HandleToggleOffline handles POST /api/settings/offline/toggle.
func (h *Handlers) HandleToggleOffline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, offlineResponse{OfflineMode: h.App.ToggleOfflineMode()})
}

// HandleStats handles GET /api/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.Stats())
}

// HandleFrame handles GET /api/camera/frame: the current live frame as JPEG,
// or 503 while the camera is not live.
func (h *Handlers) HandleFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := h.App.Frame()
	if err != nil {
		debug.Trace("Preview unavailable: %v", err)
		http.Error(w, "camera not ready", http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: previewQuality}); err != nil {
		http.Error(w, "encode frame", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
