package gateway

import (
	"time"

	"github.com/sirsinexus/realtime-gateway/src/types"
)

// InfrastructureUpdate describes a change to a cloud resource.
type InfrastructureUpdate struct {
	ResourceID string `json:"resourceId,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Type       string `json:"type"`
	Data       any    `json:"data,omitempty"`
}

// AIJobUpdate describes progress on an asynchronous AI job.
type AIJobUpdate struct {
	JobID    string `json:"jobId"`
	Type     string `json:"type,omitempty"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Result   any    `json:"result,omitempty"`
	Priority string `json:"priority,omitempty"`
}

func stamped(name string, data map[string]any, at time.Time) types.Event {
	return types.Event{Name: name, Data: data, Timestamp: at}
}

// BroadcastInfrastructureUpdate publishes a resource change to the base
// infrastructure room, the provider room when Provider is set, and the
// resource room when ResourceID is set. All targets share one timestamp.
func (s *Service) BroadcastInfrastructureUpdate(u InfrastructureUpdate) {
	now := time.Now().UTC()
	ev := stamped("infrastructure_update", map[string]any{
		"resourceId": u.ResourceID,
		"provider":   u.Provider,
		"type":       u.Type,
		"data":       u.Data,
	}, now)

	s.hub.Publish(types.RoomInfrastructureUpdates, ev)
	if u.Provider != "" {
		s.hub.Publish(types.ProviderRoom(u.Provider), ev)
	}
	if u.ResourceID != "" {
		s.hub.Publish(types.ResourceRoom(u.ResourceID), stamped("resource_update", map[string]any{
			"resourceId": u.ResourceID,
			"type":       u.Type,
			"data":       u.Data,
		}, now))
	}
}

// BroadcastAIJobUpdate publishes a job update to the base AI jobs room,
// the job-type room when Type is set, and the priority room when
// Priority is set.
func (s *Service) BroadcastAIJobUpdate(u AIJobUpdate) {
	ev := types.NewEvent("ai_job_update", map[string]any{
		"jobId":    u.JobID,
		"type":     u.Type,
		"status":   u.Status,
		"progress": u.Progress,
		"result":   u.Result,
		"priority": u.Priority,
	})

	s.hub.Publish(types.RoomAIJobUpdates, ev)
	if u.Type != "" {
		s.hub.Publish(types.AIJobTypeRoom(u.Type), ev)
	}
	if u.Priority != "" {
		s.hub.Publish(types.AIJobPriorityRoom(u.Priority), ev)
	}
}

// SendUserNotification publishes a notification to one user's private room.
func (s *Service) SendUserNotification(userID string, notification map[string]any) {
	s.hub.Publish(types.UserRoom(userID), types.NewEvent("notification", notification))
}

// BroadcastSystemNotification publishes a notification to every
// connected client.
func (s *Service) BroadcastSystemNotification(notification map[string]any) {
	s.hub.PublishAll(types.NewEvent("system_notification", notification))
}

// BroadcastTeamActivity publishes an activity record to a team's room.
func (s *Service) BroadcastTeamActivity(teamID string, activity map[string]any) {
	data := make(map[string]any, len(activity)+1)
	for k, v := range activity {
		data[k] = v
	}
	data["teamId"] = teamID
	s.hub.Publish(types.TeamRoom(teamID), types.NewEvent("team_activity", data))
}
