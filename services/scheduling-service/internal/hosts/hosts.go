package hosts

import (
	"sort"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

// Eligible derives the candidate host list for a booking type, in the
// stable order used for both slot generation and assignment: the specific
// host when one is set, otherwise the assigned list ordered by priority,
// otherwise every active operational agency member ordered by user id.
func Eligible(bt model.BookingType, members []model.Member) []string {
	if bt.HostUserID != "" {
		return []string{bt.HostUserID}
	}

	if len(bt.AssignedHosts) > 0 {
		assigned := make([]model.AssignedHost, len(bt.AssignedHosts))
		copy(assigned, bt.AssignedHosts)
		sort.SliceStable(assigned, func(i, j int) bool {
			if assigned[i].Priority != assigned[j].Priority {
				return assigned[i].Priority < assigned[j].Priority
			}
			return assigned[i].UserID < assigned[j].UserID
		})
		ids := make([]string, 0, len(assigned))
		for _, a := range assigned {
			ids = append(ids, a.UserID)
		}
		return ids
	}

	var ids []string
	for _, m := range members {
		if m.IsActive && m.IsOperational() {
			ids = append(ids, m.UserID)
		}
	}
	sort.Strings(ids)
	return ids
}
