package notifier

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/domain"
	"go.uber.org/zap"
)

// Record is a notification accepted by the Receiver
type Record struct {
	ID             int64     `json:"id"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	domain.Notification
}

// Receiver implements the ERP side of the system notification contract.
// It keeps accepted notifications in memory.
type Receiver struct {
	token    string
	validate *validator.Validate
	logger   *zap.Logger

	mu      sync.Mutex
	records []Record
	hits    map[string]int
}

// NewReceiver creates a receiver that accepts requests carrying token
func NewReceiver(token string, logger *zap.Logger) *Receiver {
	return &Receiver{
		token:    token,
		validate: domain.NewValidator(),
		logger:   logger,
		hits:     make(map[string]int),
	}
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, domain.ErrorResponse{Detail: "Method not allowed."})
		return
	}
	if !auth.ValidServiceToken(r.Header.Get(ServiceTokenHeader), rc.token) {
		writeJSON(w, http.StatusForbidden, domain.ErrorResponse{Detail: "Invalid service token."})
		return
	}

	var n domain.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Detail: "Invalid request body."})
		return
	}
	if err := rc.validate.Struct(n); err != nil {
		var verr *domain.ValidationError
		if errors.As(domain.FromValidatorError(err), &verr) {
			writeJSON(w, http.StatusBadRequest, verr.Fields)
			return
		}
		writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Detail: err.Error()})
		return
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	rec := rc.store(n, key)
	rc.logger.Info("system notification received",
		zap.Int64("id", rec.ID),
		zap.Int64("user_id", n.UserID),
		zap.String("idempotency_key", key),
	)
	writeJSON(w, http.StatusCreated, rec)
}

func (rc *Receiver) store(n domain.Notification, key string) Record {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rec := Record{
		ID:             int64(len(rc.records) + 1),
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
		Notification:   n,
	}
	rc.records = append(rc.records, rec)
	if key != "" {
		rc.hits[key]++
	}
	return rec
}

// Records returns a copy of every accepted notification
func (rc *Receiver) Records() []Record {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]Record, len(rc.records))
	copy(out, rc.records)
	return out
}

// Hits returns how many times an idempotency key was delivered
func (rc *Receiver) Hits(key string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.hits[key]
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
