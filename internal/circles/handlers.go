package circles

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aliuyar1234/circles/internal/apperrors"
	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/google/uuid"
)

// CreateRequest represents the request to create a circle
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CircleCreateResponse struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	InviteCode          string    `json:"invite_code"`
	InviteURL           string    `json:"invite_url"`
	IsInviteLinkEnabled bool      `json:"is_invite_link_enabled"`
	CreatedAt           string    `json:"created_at"`
}

// SettingsRequest updates owner settings; absent fields are left unchanged
type SettingsRequest struct {
	IsInviteLinkEnabled *bool `json:"is_invite_link_enabled"`
}

// HandleCreate handles POST /api/v1/circles
func HandleCreate(svc *Service, auditor *audit.Writer, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		var req CreateRequest
		if err := apperrors.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		circle, err := svc.CreateCircle(ctx, p, req.Name, req.Description)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		logAuditFailure(auditor.LogCircleCreated(ctx, circle.ID, p.ID, circle.Name))

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"circle": CircleCreateResponse{
				ID:                  circle.ID,
				Name:                circle.Name,
				Description:         circle.Description,
				InviteCode:          circle.InviteCode,
				InviteURL:           InviteURL(baseURL, circle.InviteCode),
				IsInviteLinkEnabled: circle.IsInviteLinkEnabled,
				CreatedAt:           circle.CreatedAt.Format(time.RFC3339),
			},
		})
	}
}

// HandleList handles GET /api/v1/circles
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		list, err := svc.ListMyCircles(ctx, auth.GetPrincipal(ctx))
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}
		if list == nil {
			list = []CircleSummary{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"circles": list,
		})
	}
}

// HandleGet handles GET /api/v1/circles/{circle_id}
func HandleGet(svc *Service, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		view, err := svc.GetCircle(ctx, auth.GetPrincipal(ctx), circleID)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		data := map[string]any{"circle": view}
		if view.Settings != nil {
			data["invite_url"] = InviteURL(baseURL, view.Settings.InviteCode)
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, data)
	}
}

// HandleDelete handles DELETE /api/v1/circles/{circle_id}
func HandleDelete(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		if err := svc.DeleteCircle(ctx, p, circleID); err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		logAuditFailure(auditor.LogCircleDeleted(ctx, circleID, p.ID))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"circle_id": circleID,
		})
	}
}

// HandleUpdateSettings handles PATCH /api/v1/circles/{circle_id}/settings
func HandleUpdateSettings(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		var req SettingsRequest
		if err := apperrors.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		err := svc.UpdateCircleSettings(ctx, p, circleID, SettingsUpdate{IsInviteLinkEnabled: req.IsInviteLinkEnabled})
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		logAuditFailure(auditor.LogSettingsUpdated(ctx, circleID, p.ID, *req.IsInviteLinkEnabled))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"settings": map[string]any{
				"is_invite_link_enabled": *req.IsInviteLinkEnabled,
			},
		})
	}
}

// HandleRegenerateInviteCode handles POST /api/v1/circles/{circle_id}/invite-code
func HandleRegenerateInviteCode(svc *Service, auditor *audit.Writer, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		code, err := svc.RegenerateInviteCode(ctx, p, circleID)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		logAuditFailure(auditor.LogInviteCodeRegenerated(ctx, circleID, p.ID))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invite_code": code,
			"invite_url":  InviteURL(baseURL, code),
		})
	}
}

// HandleListAudit handles GET /api/v1/circles/{circle_id}/audit
func HandleListAudit(svc *Service, reader *audit.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		if err := svc.RequireOwner(ctx, auth.GetPrincipal(ctx), circleID); err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		limit := audit.DefaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				limit = v
			}
		}

		events, err := reader.ListByCircle(ctx, circleID, limit)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}
		if events == nil {
			events = []audit.Event{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"events": events,
		})
	}
}

// EventRequest schedules a circle event; starts_at is RFC 3339
type EventRequest struct {
	Title    string    `json:"title"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at"`
}

// HandleCreateEvent handles POST /api/v1/circles/{circle_id}/events
func HandleCreateEvent(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		var req EventRequest
		if err := apperrors.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		event, err := svc.CreateEvent(ctx, p, circleID, req.Title, req.Location, req.StartsAt)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		logAuditFailure(auditor.LogEventCreated(ctx, circleID, p.ID, event.ID, event.StartsAt))

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"event": event,
		})
	}
}
