package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/infra/logging"
	"github.com/jabinweb/sciocare-sub001/internal/infra/metrics"
	"github.com/jabinweb/sciocare-sub001/internal/usecase"
)

const maxWebhookBody = 1 << 20 // razorpay payloads are small; cap at 1 MiB

// Server exposes the payment verification surface: the client verify call,
// the razorpay webhook, and the admin endpoints.
type Server struct {
	reconcile usecase.ReconcileUseCase
	webhooks  usecase.WebhookUseCase
	subs      repository.SubscriptionRepository
	errorLogs repository.ErrorLogRepository
	auth      *AuthManager
	limiter   Limiter
	sink      *logging.ErrorSink
	log       *zerolog.Logger
}

func NewServer(
	reconcile usecase.ReconcileUseCase,
	webhooks usecase.WebhookUseCase,
	subs repository.SubscriptionRepository,
	errorLogs repository.ErrorLogRepository,
	auth *AuthManager,
	limiter Limiter,
	sink *logging.ErrorSink,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		reconcile: reconcile,
		webhooks:  webhooks,
		subs:      subs,
		errorLogs: errorLogs,
		auth:      auth,
		limiter:   limiter,
		sink:      sink,
		log:       &l,
	}
}

// Router builds the chi router with the shared middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log, s.sink))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Timeout(30*time.Second), RateLimit(s.limiter, "rate_limit:verify:", 10, time.Minute, s.log))
			r.Post("/payments/verify", s.handleVerify)
		})
		r.With(Timeout(30 * time.Second)).Post("/webhooks/razorpay", s.handleRazorpayWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Guard(), Timeout(60*time.Second))
			r.Post("/payments/reprocess", s.handleReprocess)
			r.Get("/admin/error-logs", s.handleErrorLogs)
			r.Get("/admin/users/{userID}/subscriptions", s.handleUserSubscriptions)
		})
	})
	return r
}

// ----- request/response shapes -----

// verifyRequest carries either Razorpay proof (snake_case, as the Razorpay
// checkout handler posts it) or the Cashfree order id.
type verifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	CashfreeOrderID   string `json:"orderId"`
}

type reprocessRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Force     bool   `json:"forceReprocess"`
}

type subscriptionDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	ClassID   *int64 `json:"classId,omitempty"`
	SubjectID *int64 `json:"subjectId,omitempty"`
	Status    string `json:"status"`
	PlanType  string `json:"planType"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type verifyResponse struct {
	Verified      bool              `json:"verified"`
	PaymentID     string            `json:"paymentId"`
	Status        string            `json:"status"`
	Provisioned   bool              `json:"provisioned"`
	Subscriptions []subscriptionDTO `json:"subscriptions,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func toSubscriptionDTOs(subs []*model.Subscription) []subscriptionDTO {
	out := make([]subscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		out = append(out, subscriptionDTO{
			ID:        sub.ID,
			UserID:    sub.UserID,
			ClassID:   sub.ClassID,
			SubjectID: sub.SubjectID,
			Status:    string(sub.Status),
			PlanType:  sub.PlanType,
			Amount:    sub.Amount,
			Currency:  sub.Currency,
			StartDate: sub.StartDate.Format(time.RFC3339),
			EndDate:   sub.EndDate.Format(time.RFC3339),
		})
	}
	return out
}

// ----- handlers -----

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.PaymentVerifyRequests.WithLabelValues("none", "bad_json").Inc()
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	gateway := "none"
	switch {
	case req.RazorpayOrderID != "":
		gateway = "razorpay"
	case req.CashfreeOrderID != "":
		gateway = "cashfree"
	}

	result, err := s.reconcile.VerifyAndProvision(r.Context(), usecase.VerifyRequest{
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
		CashfreeOrderID:   req.CashfreeOrderID,
	})
	if err != nil {
		s.writeVerifyError(w, r, gateway, err)
		metrics.PaymentVerifyDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
		return
	}

	resp := verifyResponse{
		Verified:      result.Payment.Status == model.PaymentStatusCompleted,
		PaymentID:     result.Payment.ID,
		Status:        string(result.Payment.Status),
		Provisioned:   result.ProvisionErr == nil,
		Subscriptions: toSubscriptionDTOs(result.Subscriptions),
	}
	code := http.StatusOK
	if result.ProvisionErr != nil {
		// Paid but not provisioned: the client must see the payment succeeded
		// while ops get a signal that entitlements are missing.
		code = http.StatusMultiStatus
		resp.Error = "payment verified but provisioning failed; it will be retried"
		if s.sink != nil {
			s.sink.RecordError(r.Context(), "provisioner", result.ProvisionErr, &result.Payment.ID)
		}
	}
	metrics.PaymentVerifyRequests.WithLabelValues(gateway, "ok").Inc()
	metrics.PaymentVerifyDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	writeJSON(w, code, resp)
}

func (s *Server) writeVerifyError(w http.ResponseWriter, r *http.Request, gateway string, err error) {
	logging.With(r.Context(), s.log).Warn().Err(err).Msg("verification rejected")
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "invalid_signature").Inc()
		writeError(w, http.StatusBadRequest, "signature verification failed")
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "bad_request").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPaymentNotFound):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "not_found").Inc()
		writeError(w, http.StatusNotFound, "payment not found")
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "not_completed").Inc()
		writeError(w, http.StatusConflict, "payment is not completed at the gateway")
	case errors.Is(err, domain.ErrLockNotAcquired):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "locked").Inc()
		w.Header().Set("Retry-After", "2")
		writeError(w, http.StatusServiceUnavailable, "payment is being processed, retry shortly")
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "not_configured").Inc()
		writeError(w, http.StatusServiceUnavailable, "payment gateway is not configured")
	case errors.Is(err, domain.ErrCircuitOpen):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "circuit_open").Inc()
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "payment gateway is unavailable, retry shortly")
	case errors.Is(err, context.DeadlineExceeded):
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "timeout").Inc()
		writeError(w, http.StatusRequestTimeout, "verification timed out")
	default:
		metrics.PaymentVerifyRequests.WithLabelValues(gateway, "error").Inc()
		if s.sink != nil {
			s.sink.RecordError(r.Context(), "reconciler", err, nil)
		}
		writeError(w, http.StatusInternalServerError, "verification failed")
	}
}

func (s *Server) handleRazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "error").Inc()
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	signature := r.Header.Get("X-Razorpay-Signature")

	result, err := s.webhooks.HandleRazorpay(r.Context(), body, signature)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
			writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "error").Inc()
			writeError(w, http.StatusBadRequest, "malformed webhook payload")
		case errors.Is(err, domain.ErrPaymentNotFound):
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "not_found").Inc()
			writeError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, domain.ErrLockNotAcquired):
			// Non-2xx so razorpay redelivers once the other writer is done.
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "locked").Inc()
			writeError(w, http.StatusServiceUnavailable, "payment is being processed")
		default:
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "error").Inc()
			if s.sink != nil {
				s.sink.RecordError(r.Context(), "webhook", err, nil)
			}
			writeError(w, http.StatusInternalServerError, "webhook processing failed")
		}
		return
	}

	outcome := "ignored"
	status := "ignored"
	if result.Handled {
		outcome = "handled"
		status = "success"
	}
	metrics.WebhookEventsTotal.WithLabelValues(result.Event, outcome).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.reconcile.Reprocess(r.Context(), req.PaymentID, req.OrderID, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrPaymentNotFound):
			writeError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, domain.ErrPaymentNotCompleted):
			writeError(w, http.StatusConflict, "only completed payments can be reprocessed")
		default:
			writeError(w, http.StatusInternalServerError, "reprocess failed")
		}
		return
	}

	resp := verifyResponse{
		Verified:      result.Payment.Status == model.PaymentStatusCompleted,
		PaymentID:     result.Payment.ID,
		Status:        string(result.Payment.Status),
		Provisioned:   result.ProvisionErr == nil,
		Subscriptions: toSubscriptionDTOs(result.Subscriptions),
	}
	code := http.StatusOK
	if result.ProvisionErr != nil {
		code = http.StatusMultiStatus
		resp.Error = result.ProvisionErr.Error()
		if s.sink != nil {
			s.sink.RecordError(r.Context(), "provisioner", result.ProvisionErr, &result.Payment.ID)
		}
	}
	writeJSON(w, code, resp)
}

type errorLogDTO struct {
	ID        string                 `json:"id"`
	Level     string                 `json:"level"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	UserID    *string                `json:"userId,omitempty"`
	PaymentID *string                `json:"paymentId,omitempty"`
	CreatedAt string                 `json:"createdAt"`
}

func (s *Server) handleErrorLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	logs, err := s.errorLogs.ListRecent(r.Context(), nil, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load error logs")
		return
	}
	entries := make([]errorLogDTO, 0, len(logs))
	for _, e := range logs {
		entries = append(entries, errorLogDTO{
			ID:        e.ID,
			Level:     string(e.Level),
			Source:    e.Source,
			Message:   e.Message,
			Details:   e.Details,
			UserID:    e.UserID,
			PaymentID: e.PaymentID,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

func (s *Server) handleUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	subs, err := s.subs.ListByUser(r.Context(), nil, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": toSubscriptionDTOs(subs)})
}

// ----- helpers -----

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
