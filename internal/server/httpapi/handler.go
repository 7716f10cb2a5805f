package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soclocker/soclocker/internal/common"
	"github.com/soclocker/soclocker/internal/logging"
	"github.com/soclocker/soclocker/internal/server/services"
)

// Handler translates the JSON wire contract into service calls. Field names
// follow the protocol the web client speaks; all binary material is base64.
type Handler struct {
	users  *services.UserService
	auth   *services.AuthService
	posts  *services.PostService
	noas   *services.NOAService
	logger logging.Logger
}

func NewHandler(us *services.UserService, as *services.AuthService, ps *services.PostService, ns *services.NOAService, logger logging.Logger) *Handler {
	return &Handler{
		users:  us,
		auth:   as,
		posts:  ps,
		noas:   ns,
		logger: logger.With("module", "http_handler"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/server_public_key", h.serverPublicKey)
	r.Get("/auth", h.getChallenge)
	r.Post("/auth", h.validateProof)
	r.Get("/user", h.getUser)
	r.Post("/user", h.registerUser)
	r.Post("/post", h.publishPost)
	r.Put("/post", h.editPost)
	r.Get("/noa", h.listAccessible)
}

// --- wire types ---

type userBody struct {
	ID        int64  `json:"id,omitempty"`
	PublicKey string `json:"publicKey"`
	Username  string `json:"username"`
}

type authResponse struct {
	EncryptedToken string `json:"encryptedToken"`
	Nonce          string `json:"nonce"`
}

type authValidateBody struct {
	DecryptedToken string `json:"decryptedToken"`
	Username       string `json:"username"`
}

type noaTargetBody struct {
	Username           string `json:"username"`
	EncryptedSecretKey string `json:"encryptedSecretKey"`
	Nonce              string `json:"nonce"`
}

type postBody struct {
	Content          string          `json:"content"`
	Nonce            string          `json:"nonce"`
	Username         string          `json:"username"`
	Proof            string          `json:"proof"`
	PublicKey        string          `json:"publicKey"`
	PublicKeyNonce   string          `json:"publicKeyNonce"`
	NoaEncryptedKeys []noaTargetBody `json:"noaEncryptedKeys"`
}

type postPutBody struct {
	PostID     int64  `json:"postId"`
	Proof      string `json:"proof"`
	NewContent string `json:"newContent"`
	NewNonce   string `json:"newNonce"`
}

type postResponse struct {
	Content                 string    `json:"content"`
	Nonce                   string    `json:"nonce"`
	Username                string    `json:"username"`
	PublicKey               string    `json:"publicKey"`
	PostID                  int64     `json:"postId"`
	TimePosted              time.Time `json:"timePosted"`
	EncryptedPublicKey      string    `json:"encryptedPublicKey"`
	EncryptedPublicKeyNonce string    `json:"encryptedPublicKeyNonce"`
}

type noaResponse struct {
	Post               postResponse `json:"post"`
	EncryptedSecretKey string       `json:"encryptedSecretKey"`
	Nonce              string       `json:"nonce"`
	AllReaders         []string     `json:"allReaders"`
}

type noaOuterResponse struct {
	Noas  []noaResponse `json:"noas"`
	Pages int64         `json:"pages"`
}

// --- helpers ---

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(ctx, "encoding response", "error", err.Error())
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// --- handlers ---

// serverPublicKey returns the server's base64 box public key. It never
// changes once the server is deployed; changes to it would break all
// previously sealed challenges and envelopes.
func (h *Handler) serverPublicKey(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, h.auth.PublicKey())
}

// getChallenge issues (or re-seals) the caller's authentication challenge.
func (h *Handler) getChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.URL.Query().Get("username")

	envelope, err := h.auth.RequestChallenge(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "requesting challenge", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, &authResponse{
		EncryptedToken: envelope.EncryptedToken,
		Nonce:          envelope.Nonce,
	})
}

// validateProof checks a decrypted challenge token. The response is a plain
// JSON boolean; a successful proof consumes the challenge.
func (h *Handler) validateProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := &authValidateBody{}
	if !h.decode(w, r, body) {
		return
	}

	valid, err := h.auth.Validate(ctx, body.Username, body.DecryptedToken)
	if err != nil {
		h.logger.Error(ctx, "validating proof", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, valid)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.URL.Query().Get("username")

	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "fetching user", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, &userBody{
		ID:        user.ID,
		PublicKey: user.PublicKey,
		Username:  user.Username,
	})
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := &userBody{}
	if !h.decode(w, r, body) {
		return
	}

	_, err := h.users.Register(ctx, body.PublicKey, body.Username)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			http.Error(w, "username taken", http.StatusConflict)
			return
		}
		h.logger.Error(ctx, "registering user", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// publishPost creates a post and its access grants in one transaction. The
// body reports true on success and false when a grantee did not resolve (the
// whole publish is rolled back in that case).
func (h *Handler) publishPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := &postBody{}
	if !h.decode(w, r, body) {
		return
	}

	req := &services.PublishRequest{
		Username:         body.Username,
		Proof:            body.Proof,
		Content:          body.Content,
		Nonce:            body.Nonce,
		KeyEnvelope:      body.PublicKey,
		KeyEnvelopeNonce: body.PublicKeyNonce,
	}
	for _, target := range body.NoaEncryptedKeys {
		req.Grantees = append(req.Grantees, services.Grantee{
			Username:   target.Username,
			WrappedKey: target.EncryptedSecretKey,
			Nonce:      target.Nonce,
		})
	}

	_, err := h.posts.Publish(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorUnauthorized):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, common.ErrUnknownGrantee):
			h.logger.Warn(ctx, "publish rolled back", "error", err.Error())
			h.writeJSON(ctx, w, http.StatusOK, false)
		default:
			h.logger.Error(ctx, "publishing post", "error", err.Error())
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, true)
}

func (h *Handler) editPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := &postPutBody{}
	if !h.decode(w, r, body) {
		return
	}

	err := h.posts.Edit(ctx, body.PostID, body.Proof, body.NewContent, body.NewNonce)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			http.Error(w, "post not found", http.StatusNotFound)
		case errors.Is(err, common.ErrorUnauthorized):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			h.logger.Error(ctx, "editing post", "error", err.Error())
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) listAccessible(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.URL.Query().Get("username")

	var skip int64
	if raw := r.URL.Query().Get("skip"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid skip", http.StatusBadRequest)
			return
		}
		skip = parsed
	}

	page, err := h.noas.ListAccessible(ctx, username, skip)
	if err != nil {
		h.logger.Error(ctx, "listing accessible posts", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := &noaOuterResponse{Noas: make([]noaResponse, 0, len(page.Entries)), Pages: page.Pages}
	for _, entry := range page.Entries {
		out.Noas = append(out.Noas, noaResponse{
			Post: postResponse{
				Content:                 entry.Post.Content,
				Nonce:                   entry.Post.Nonce,
				Username:                entry.Author.Username,
				PublicKey:               entry.Author.PublicKey,
				PostID:                  entry.Post.ID,
				TimePosted:              entry.Post.TimePosted,
				EncryptedPublicKey:      entry.Post.KeyEnvelope,
				EncryptedPublicKeyNonce: entry.Post.KeyEnvelopeNonce,
			},
			EncryptedSecretKey: entry.WrappedKey,
			Nonce:              entry.Nonce,
			AllReaders:         entry.AllReaders,
		})
	}

	h.writeJSON(ctx, w, http.StatusOK, out)
}
