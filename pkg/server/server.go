// Package server はライフサイクルを HTTP と WebSocket で公開します。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"
	"github.com/shouni/gemini-prompt-kit/pkg/lifecycle"
)

const (
	// uploadFormField はアップロードフォームの画像フィールド名です。
	uploadFormField = "image"
	// maxMemory は multipart をメモリに保持する上限です。超えた分は一時ファイルになります。
	maxMemory      = 32 << 20
	previewQuality = 80
)

// Lifecycle はハンドラーが利用するライフサイクルの操作です。
type Lifecycle interface {
	Upload(ctx context.Context, r io.Reader, mimeType string) error
	Generate(ctx context.Context) (*lifecycle.Attempt, error)
	Reset()
	Snapshot() lifecycle.Snapshot
	Watch(fn func(lifecycle.Snapshot)) (unsubscribe func())
}

// Handler は HTTP API と WebSocket のエンドポイントをまとめます。
type Handler struct {
	lc             Lifecycle
	hub            *Hub
	previewMaxEdge int
}

// NewHandler は Handler を初期化します。
func NewHandler(lc Lifecycle, previewMaxEdge int) (*Handler, error) {
	if lc == nil {
		return nil, fmt.Errorf("lc (Lifecycle) is required")
	}
	if previewMaxEdge <= 0 {
		previewMaxEdge = imgutil.DefaultPreviewMaxEdge
	}
	return &Handler{
		lc:             lc,
		hub:            NewHub(lc),
		previewMaxEdge: previewMaxEdge,
	}, nil
}

// Router は CORS ミドルウェア付きのルーターを返します。
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(enableCORS)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes はルートを登録します。
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.handleHealth).Methods("GET")
	r.HandleFunc("/api/state", h.handleState).Methods("GET")
	r.HandleFunc("/api/image", h.handleUpload).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/generate", h.handleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/reset", h.handleReset).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/preview", h.handlePreview).Methods("GET")
	r.HandleFunc("/ws", h.hub.ServeWS)
}

// Close は WebSocket クライアントを切断し、購読を解除します。
func (h *Handler) Close() {
	h.hub.Close()
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.lc.Snapshot())
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "multipart/form-data で画像を送信してください")
		return
	}
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%q フィールドが見つかりません", uploadFormField))
		return
	}
	defer file.Close()

	// 汎用の型しか付いていない場合は内容から推定させます。
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	if err := h.lc.Upload(r.Context(), file, mimeType); err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.lc.Snapshot())
}

// handleGenerate は生成を開始して 202 を返します。wait=true の場合は完了まで待って 200 を返します。
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.lc.Generate(r.Context())
	if err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, h.lc.Snapshot())
		return
	}

	select {
	case <-attempt.Done():
		writeJSON(w, http.StatusOK, h.lc.Snapshot())
	case <-r.Context().Done():
		slog.InfoContext(r.Context(), "生成の完了を待たずに切断されました", "attempt_id", attempt.ID)
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.lc.Reset()
	writeJSON(w, http.StatusOK, h.lc.Snapshot())
}

// handlePreview は現在の画像を JPEG サムネイルにして返します。
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	snap := h.lc.Snapshot()
	if snap.Image == nil {
		writeError(w, http.StatusNotFound, domain.ErrNoImage.Error())
		return
	}
	data, err := imgutil.Decode(*snap.Image)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	thumb, err := imgutil.Preview(data, h.previewMaxEdge, previewQuality)
	if err != nil {
		slog.WarnContext(r.Context(), "プレビューを作成できませんでした", "mime_type", snap.Image.MimeType, "error", err)
		writeError(w, http.StatusUnsupportedMediaType, "preview is not available for this image")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(thumb)
}

// writeLifecycleError はライフサイクルのエラーを HTTP ステータスに対応付けます。
func (h *Handler) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		encErr *domain.EncodingError
		valErr *domain.ValidationError
	)
	switch {
	case errors.As(err, &encErr):
		writeError(w, http.StatusBadRequest, encErr.UserMessage())
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, valErr.Error())
	case errors.Is(err, domain.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.ErrorContext(r.Context(), "予期しないエラー", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// enableCORS はブラウザのフロントエンドから呼べるようにヘッダーを付けます。
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
