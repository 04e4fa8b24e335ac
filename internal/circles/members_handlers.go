package circles

import (
	"net/http"

	"github.com/aliuyar1234/circles/internal/apperrors"
	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/auth"
)

// HandleListPending handles GET /api/v1/circles/{circle_id}/members/pending
func HandleListPending(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}

		members, err := svc.GetPendingMembers(ctx, auth.GetPrincipal(ctx), circleID)
		if err != nil {
			writeServiceError(w, r, err, "Circle not found")
			return
		}
		if members == nil {
			members = []MemberInfo{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": members,
		})
	}
}

// HandleApprove handles POST /api/v1/circles/{circle_id}/members/{user_id}/approve
func HandleApprove(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}
		userID, ok := uuidParam(w, r, "user_id", "user ID")
		if !ok {
			return
		}

		m, err := svc.ApproveMember(ctx, p, circleID, userID)
		if err != nil {
			writeServiceError(w, r, err, "Membership not found")
			return
		}

		logAuditFailure(auditor.LogMemberApproved(ctx, circleID, p.ID, userID))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"membership": m,
		})
	}
}

// HandleReject handles POST /api/v1/circles/{circle_id}/members/{user_id}/reject
func HandleReject(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}
		userID, ok := uuidParam(w, r, "user_id", "user ID")
		if !ok {
			return
		}

		m, err := svc.RejectMember(ctx, p, circleID, userID)
		if err != nil {
			writeServiceError(w, r, err, "Membership not found")
			return
		}

		logAuditFailure(auditor.LogMemberRejected(ctx, circleID, p.ID, userID))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"membership_id": m.ID,
			"user_id":       m.UserID,
		})
	}
}

// HandleRemove handles DELETE /api/v1/circles/{circle_id}/members/{user_id}
func HandleRemove(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		circleID, ok := uuidParam(w, r, "circle_id", "circle ID")
		if !ok {
			return
		}
		userID, ok := uuidParam(w, r, "user_id", "user ID")
		if !ok {
			return
		}

		m, err := svc.RemoveMember(ctx, p, circleID, userID)
		if err != nil {
			writeServiceError(w, r, err, "Membership not found")
			return
		}

		logAuditFailure(auditor.LogMemberRemoved(ctx, circleID, p.ID, userID, string(m.Status)))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"membership_id":   m.ID,
			"user_id":         m.UserID,
			"previous_status": m.Status,
		})
	}
}

// HandleApproveMembership handles POST /api/v1/memberships/{membership_id}/approve
func HandleApproveMembership(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		membershipID, ok := uuidParam(w, r, "membership_id", "membership ID")
		if !ok {
			return
		}

		m, err := svc.ApproveMembership(ctx, p, membershipID)
		if err != nil {
			writeServiceError(w, r, err, "Membership not found")
			return
		}

		logAuditFailure(auditor.LogMemberApproved(ctx, m.CircleID, p.ID, m.UserID))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"membership": m,
		})
	}
}

// HandleRejectMembership handles POST /api/v1/memberships/{membership_id}/reject
func HandleRejectMembership(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.GetPrincipal(ctx)

		membershipID, ok := uuidParam(w, r, "membership_id", "membership ID")
		if !ok {
			return
		}

		m, err := svc.RejectMembership(ctx, p, membershipID)
		if err != nil {
			writeServiceError(w, r, err, "Membership not found")
			return
		}

		logAuditFailure(auditor.LogMemberRejected(ctx, m.CircleID, p.ID, m.UserID))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"membership_id": m.ID,
			"user_id":       m.UserID,
		})
	}
}
