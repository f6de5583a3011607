// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// listItem is one audit event with its ids resolved to names.
type listItem struct {
	audit.Event
	ActorName  string `json:"actor_name,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	RegionName string `json:"region_name,omitempty"`
}

type listPage struct {
	paging.Page[listItem]
	Total int64 `json:"total"`
}

// ServeList handles GET /audit.
//
// Query: category, event_type, user_id, actor_id, region_id, start_date and
// end_date (YYYY-MM-DD, end inclusive), start, limit. Newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter := audit.QueryFilter{
		Category:  query.Get(r, "category"),
		EventType: query.Get(r, "event_type"),
		UserID:    query.Get(r, "user_id"),
		ActorID:   query.Get(r, "actor_id"),
	}
	if filter.Category != "" && filter.Category != audit.CategoryAuth && filter.Category != audit.CategoryAdmin {
		jsonio.Error(w, http.StatusBadRequest, "Categoria inválida.")
		return
	}
	regionID, err := formutil.OptionalID(query.Get(r, "region_id"))
	if err != nil {
		jsonio.Error(w, http.StatusBadRequest, "Região inválida.")
		return
	}
	filter.RegionID = regionID

	if s := query.Get(r, "start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			jsonio.Error(w, http.StatusBadRequest, "Data inicial inválida.")
			return
		}
		filter.StartTime = &t
	}
	if s := query.Get(r, "end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			jsonio.Error(w, http.StatusBadRequest, "Data final inválida.")
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "audit: count failed", err, "")
		return
	}

	start, limit := paging.ParseStart(r), paging.ParseLimit(r)
	filter.Offset = paging.Skip(start)
	filter.Limit = int64(limit + 1)
	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "audit: query failed", err, "")
		return
	}
	hasNext := paging.TrimPage(&events, limit)

	jsonio.OK(w, listPage{Page: paging.NewPage(h.items(ctx, events), start, hasNext), Total: total})
}

// items resolves user and region names in one batch each. Ids that no
// longer resolve are shown as-is.
func (h *Handler) items(ctx context.Context, events []audit.Event) []listItem {
	userIDs := make([]string, 0, len(events)*2)
	regionIDs := make([]primitive.ObjectID, 0, len(events))
	for _, e := range events {
		if e.ActorID != "" {
			userIDs = append(userIDs, e.ActorID)
		}
		if e.UserID != "" {
			userIDs = append(userIDs, e.UserID)
		}
		if e.RegionID != nil {
			regionIDs = append(regionIDs, *e.RegionID)
		}
	}

	userNames, err := h.Users.Names(ctx, userIDs)
	if err != nil {
		h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
	}
	regionNames := map[primitive.ObjectID]string{}
	if len(regionIDs) > 0 {
		if regionNames, err = h.Regions.Names(ctx, regionIDs); err != nil {
			h.Log.Warn("failed to fetch region names for audit log", zap.Error(err))
		}
	}

	name := func(id string) string {
		if n, ok := userNames[id]; ok {
			return n
		}
		return id
	}
	out := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{Event: e, ActorName: name(e.ActorID), TargetName: name(e.UserID)}
		if e.RegionID != nil {
			item.RegionName = regionNames[*e.RegionID]
			if item.RegionName == "" {
				item.RegionName = e.RegionID.Hex()
			}
		}
		out = append(out, item)
	}
	return out
}
