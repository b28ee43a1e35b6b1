package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"translate_broker/internal/broker"
	"translate_broker/internal/models"
	"translate_broker/internal/utils"
)

// parseBearer extracts the token from an "Authorization: Bearer <token>"
// header.
func parseBearer(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func (d *Dependencies) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSession issues a liveness token on POST and revokes one on DELETE.
func (d *Dependencies) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		installID, err := d.Store.InstallationID(r.Context())
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to resolve installation")
			return
		}
		token, err := d.Sessions.Open(installID)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to open session")
			return
		}
		utils.RespondWithJSON(w, http.StatusCreated, map[string]string{"token": token})

	case http.MethodDelete:
		token, err := parseBearer(r.Header.Get("Authorization"))
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		d.Sessions.Revoke(token)
		w.WriteHeader(http.StatusNoContent)

	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type completeRequest struct {
	RequestID string `json:"requestId"`
	Text      string `json:"text"`
}

func (d *Dependencies) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, err := parseBearer(r.Header.Get("Authorization"))
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := d.Broker.HandleCompletionRequest(r.Context(), models.CompletionRequest{
		RequestID: req.RequestID,
		Text:      req.Text,
	}, token)
	if err != nil {
		if errors.Is(err, broker.ErrCallerInvalidated) {
			utils.RespondWithError(w, http.StatusGone, "session no longer valid")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

type analyticsResponse struct {
	models.Analytics
	AvgLatencyMS int64 `json:"avgLatencyMs"`
	SuccessRate  int   `json:"successRate"`
}

func (d *Dependencies) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot, err := d.Analytics.Snapshot(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to read analytics")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, analyticsResponse{
		Analytics:    snapshot,
		AvgLatencyMS: snapshot.AvgLatencyMS(),
		SuccessRate:  snapshot.SuccessRate(),
	})
}

// maskAPIKey hides the credential body, keeping only the prefix and the last
// four characters.
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 7 {
		return "sk-..."
	}
	return key[:3] + "..." + key[len(key)-4:]
}

func (d *Dependencies) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := d.Store.GetSettings(r.Context())
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to read settings")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, models.Settings{
			APIKey:         maskAPIKey(settings.APIKey),
			TargetLanguage: settings.TargetLanguage,
		})

	case http.MethodPut:
		var settings models.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if settings.APIKey != "" && !strings.HasPrefix(settings.APIKey, "sk-") {
			utils.RespondWithError(w, http.StatusBadRequest, "API key must start with sk-")
			return
		}
		if settings.TargetLanguage == "" {
			settings.TargetLanguage = "English"
		}
		if err := d.Store.SetSettings(r.Context(), settings); err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type subscriptionResponse struct {
	Tier           models.Tier `json:"tier"`
	PendingPayment bool        `json:"pendingPayment"`
	DailyUsage     int         `json:"dailyUsage"`
	DailyLimit     int         `json:"dailyLimit"`
}

func (d *Dependencies) handleSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sub, err := d.Subscriptions.Current(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to read subscription")
		return
	}
	usage, err := d.Ledger.TodayCount(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to read usage")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, subscriptionResponse{
		Tier:           sub.Tier,
		PendingPayment: sub.PendingPayment,
		DailyUsage:     usage,
		DailyLimit:     sub.Tier.DailyLimit(),
	})
}

func (d *Dependencies) handleSubscriptionDemo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := d.Subscriptions.ActivateDemo(r.Context()); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to activate demo")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"tier": string(models.TierPremium)})
}

func (d *Dependencies) handleSubscriptionDowngrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := d.Subscriptions.Downgrade(r.Context()); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to downgrade")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"tier": string(models.TierFree)})
}

func (d *Dependencies) handleSubscriptionCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	url, err := d.Subscriptions.InitiateCheckout(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to initiate checkout")
		return
	}

	// The poll outlives this request, so it runs on a background context.
	d.Poller.TryStart(context.Background())

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"url": url})
}
