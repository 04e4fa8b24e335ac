package circles

import (
	"net/http"
	"time"

	"github.com/aliuyar1234/circles/internal/apperrors"
	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateLimitedLinkRequest represents the request to create a limited invite link
type CreateLimitedLinkRequest struct {
	MaxUses int `json:"max_uses"`
}

type LimitedLinkResponse struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	InviteURL     string    `json:"invite_url"`
	MaxUses       int       `json:"max_uses"`
	UsedCount     int       `json:"used_count"`
	RemainingUses int       `json:"remaining_uses"`
	Exhausted     bool      `json:"exhausted"`
	CreatedAt     string    `json:"created_at"`
}

func toLimitedLinkResponse(l *LimitedInviteLink, baseURL string) LimitedLinkResponse {
	return LimitedLinkResponse{
		ID:            l.ID,
		Code:          l.Code,
		InviteURL:     InviteURL(baseURL, l.Code),
		MaxUses:       l.MaxUses,
		UsedCount:     l.UsedCount,
		RemainingUses: l.RemainingUses(),
		Exhausted:     l.Exhausted(),
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
	}
}

// HandlePreviewInvite handles GET /api/v1/invites/{code}. No session is required.
func HandlePreviewInvite(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preview, err := svc.GetCircleByInviteCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeServiceError(w, r, err, "Invite not found")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"circle": preview,
		})
	}
}

// HandleJoin handles POST /api/v1/invites/{code}/join
func HandleJoin(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		result, err := svc.JoinCircleByCode(ctx, p, chi.URLParam(r, "code"))
		if err != nil {
			writeServiceError(w, r, err, "Invite not found")
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
			switch result.Channel {
			case ChannelGeneral:
				logAuditFailure(auditor.LogJoinRequested(ctx, result.CircleID, p.ID, result.Membership.ID))
			case ChannelLimited:
				logAuditFailure(auditor.LogJoinedViaLimitedLink(ctx, result.CircleID, p.ID, result.Membership.ID))
			}
		}

		apperrors.WriteSuccess(w, r, status, map[string]any{
			"join":          result,
			"redirect_path": "/circles/" + result.CircleID.String(),
		})
	}
}

// HandleCreateLimitedLink handles POST /api/v1/circles/{circle_id}/limited-links
func HandleCreateLimitedLink(svc *Service, auditor *audit.Writer, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		var req CreateLimitedLinkRequest
		if err := apperrors.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		link, err := svc.CreateLimitedInviteLink(ctx, p, circleID, req.MaxUses)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		logAuditFailure(auditor.LogLimitedLinkCreated(ctx, circleID, p.ID, link.ID, link.MaxUses))

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"link": toLimitedLinkResponse(link, baseURL),
		})
	}
}

// HandleListLimitedLinks handles GET /api/v1/circles/{circle_id}/limited-links
func HandleListLimitedLinks(svc *Service, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		links, err := svc.GetLimitedInviteLinks(ctx, auth.GetPrincipal(ctx), circleID)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}

		resp := make([]LimitedLinkResponse, len(links))
		for i := range links {
			resp[i] = toLimitedLinkResponse(&links[i], baseURL)
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"links": resp,
		})
	}
}

// HandleRevokeLimitedLink handles DELETE /api/v1/limited-links/{link_id}
func HandleRevokeLimitedLink(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		linkID, ok := uuidParam(w, r, "link_id", "link ID")
		if !ok {
			return
		}

		link, err := svc.RevokeLimitedInviteLink(ctx, p, linkID)
		if err != nil {
			writeServiceError(w, r, err, "Invite link not found")
			return
		}

		logAuditFailure(auditor.LogLimitedLinkRevoked(ctx, link.CircleID, p.ID, link.ID, link.UsedCount))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"link_id": link.ID,
		})
	}
}
