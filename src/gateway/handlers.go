package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/sirsinexus/realtime-gateway/src/hub"
	"github.com/sirsinexus/realtime-gateway/src/types"
)

// handleFrame dispatches one inbound frame. Protocol errors are
// normalized into an "error" event to the offending connection; they
// are never returned as Go errors.
func (s *Service) handleFrame(c *hub.Client, f types.Frame) error {
	switch f.Type {
	case types.FrameSubscribe:
		return s.handleSubscribe(c, f.Data)
	case types.FrameUnsubscribe:
		return s.handleUnsubscribe(c, f.Data)
	case types.FrameMonitorInfra:
		return s.handleMonitorInfrastructure(c, f.Data)
	case types.FrameMonitorAIJobs:
		return s.handleMonitorAIJobs(c, f.Data)
	case types.FrameJoinTeam:
		return s.handleJoinTeam(c, f.Data)
	case types.FrameLeaveTeam:
		return s.handleLeaveTeam(c, f.Data)
	case types.FrameTypingStart:
		return s.handleTyping(c, f.Data, "user_typing_start")
	case types.FrameTypingStop:
		return s.handleTyping(c, f.Data, "user_typing_stop")
	case types.FrameSettingsUpdate:
		return s.handleSettingsUpdate(c, f.Data)
	default:
		s.logger.Debug().Str("frame", f.Type).Str("user_id", c.UserID).
			Msg("unknown frame type")
		return nil
	}
}

func (s *Service) sendError(c *hub.Client, message string) {
	c.Deliver(types.NewEvent("error", map[string]any{"message": message}))
}

func decode[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, nil
	}
	err := json.Unmarshal(raw, &payload)
	return payload, err
}

func (s *Service) handleSubscribe(c *hub.Client, raw json.RawMessage) error {
	p, err := decode[types.SubscribePayload](raw)
	if err != nil {
		s.sendError(c, "Malformed subscribe payload")
		return nil
	}

	switch p.Channel {
	case types.ChannelInfrastructure:
		s.hub.Join(types.RoomInfrastructureUpdates, c.UserID)
		if p.Filters.Provider != "" {
			s.hub.Join(types.ProviderRoom(p.Filters.Provider), c.UserID)
		}
	case types.ChannelAIJobs:
		s.hub.Join(types.RoomAIJobUpdates, c.UserID)
	case types.ChannelNotifications:
		s.hub.Join(types.RoomNotificationUpdates, c.UserID)
	case types.ChannelTeamActivities:
		if p.Filters.TeamID != "" {
			s.hub.Join(types.TeamRoom(p.Filters.TeamID), c.UserID)
		}
	default:
		s.sendError(c, fmt.Sprintf("Unknown channel: %s", p.Channel))
		return nil
	}

	s.trackSubscription(c.UserID, p.Channel)
	c.Deliver(types.NewEvent("subscribed", map[string]any{"channel": p.Channel}))
	s.logger.Debug().Str("user_id", c.UserID).Str("channel", p.Channel).Msg("subscribed")
	return nil
}

func (s *Service) handleUnsubscribe(c *hub.Client, raw json.RawMessage) error {
	p, err := decode[types.UnsubscribePayload](raw)
	if err != nil {
		s.sendError(c, "Malformed unsubscribe payload")
		return nil
	}

	switch p.Channel {
	case types.ChannelInfrastructure:
		// Leaves the base room and every provider room, regardless of
		// how the provider rooms were joined.
		s.hub.LeaveByPrefix(c.UserID, types.InfraRoomPrefix)
	case types.ChannelAIJobs:
		s.hub.Leave(types.RoomAIJobUpdates, c.UserID)
	case types.ChannelNotifications:
		s.hub.Leave(types.RoomNotificationUpdates, c.UserID)
	case types.ChannelTeamActivities:
		// Leaves every team room the connection is in, not only those
		// joined through team_activities.
		s.hub.LeaveByPrefix(c.UserID, types.TeamRoomPrefix)
	}

	s.untrackSubscription(c.UserID, p.Channel)
	c.Deliver(types.NewEvent("unsubscribed", map[string]any{"channel": p.Channel}))
	s.logger.Debug().Str("user_id", c.UserID).Str("channel", p.Channel).Msg("unsubscribed")
	return nil
}

func (s *Service) handleMonitorInfrastructure(c *hub.Client, raw json.RawMessage) error {
	p, err := decode[types.MonitorInfraPayload](raw)
	if err != nil {
		s.sendError(c, "Malformed monitor_infrastructure payload")
		return nil
	}
	// Echo empty arrays, not null, when the fields were omitted.
	if p.ResourceIDs == nil {
		p.ResourceIDs = []string{}
	}
	if p.Providers == nil {
		p.Providers = []string{}
	}

	for _, resourceID := range p.ResourceIDs {
		s.hub.Join(types.ResourceRoom(resourceID), c.UserID)
	}
	for _, provider := range p.Providers {
		s.hub.Join(types.ProviderRoom(provider), c.UserID)
	}

	c.Deliver(types.NewEvent("infrastructure_monitoring_started", map[string]any{
		"resourceIds": p.ResourceIDs,
		"providers":   p.Providers,
	}))
	return nil
}

func (s *Service) handleMonitorAIJobs(c *hub.Client, raw json.RawMessage) error {
	p, err := decode[types.MonitorAIJobsPayload](raw)
	if err != nil {
		s.sendError(c, "Malformed monitor_ai_jobs payload")
		return nil
	}
	if p.JobTypes == nil {
		p.JobTypes = []string{}
	}
	if p.Priority == "" {
		p.Priority = "all"
	}

	s.hub.Join(types.RoomAIJobUpdates, c.UserID)
	for _, jobType := range p.JobTypes {
		s.hub.Join(types.AIJobTypeRoom(jobType), c.UserID)
	}
	if p.Priority != "all" {
		s.hub.Join(types.AIJobPriorityRoom(p.Priority), c.UserID)
	}

	c.Deliver(types.NewEvent("ai_job_monitoring_started", map[string]any{
		"jobTypes": p.JobTypes,
		"priority": p.Priority,
	}))
	return nil
}

func (s *Service) handleJoinTeam(c *hub.Client, raw json.RawMessage) error {
	p, err := decode[types.TeamPayload](raw)
	if err != nil || p.TeamID == "" {
		s.sendError(c, "Team ID required")
		return nil
	}

	room := types.TeamRoom(p.TeamID)
	s.hub.Join(room, c.UserID)

	s.hub.PublishExcept(room, c.UserID, types.NewEvent("team_member_joined", map[string]any{
		"userId":    c.UserID,
		"userEmail": c.Email,
		"teamId":    p.TeamID,
	}))
	c.Deliver(types.NewEvent("team_joined", map[string]any{"teamId": p.TeamID}))
	return nil
}

func (s *Service) handleLeaveTeam(c *hub.Client, raw json.RawMessage) error {
	p, err := decode[types.TeamPayload](raw)
	if err != nil || p.TeamID == "" {
		s.sendError(c, "Team ID required")
		return nil
	}

	room := types.TeamRoom(p.TeamID)
	s.hub.PublishExcept(room, c.UserID, types.NewEvent("team_member_left", map[string]any{
		"userId":    c.UserID,
		"userEmail": c.Email,
		"teamId":    p.TeamID,
	}))
	s.hub.Leave(room, c.UserID)
	c.Deliver(types.NewEvent("team_left", map[string]any{"teamId": p.TeamID}))
	return nil
}

func (s *Service) handleTyping(c *hub.Client, raw json.RawMessage, event string) error {
	p, err := decode[types.TypingPayload](raw)
	if err != nil {
		s.sendError(c, "Malformed typing payload")
		return nil
	}
	if p.Context == "" {
		p.Context = "chat"
	}

	s.hub.PublishExcept(types.TeamRoom(p.TeamID), c.UserID, types.NewEvent(event, map[string]any{
		"userId":    c.UserID,
		"userEmail": c.Email,
		"teamId":    p.TeamID,
		"context":   p.Context,
	}))
	return nil
}

func (s *Service) handleSettingsUpdate(c *hub.Client, raw json.RawMessage) error {
	p, err := decode[types.SettingsUpdatePayload](raw)
	if err != nil {
		s.sendError(c, "Malformed settings_update payload")
		return nil
	}
	if p.Scope == "" {
		p.Scope = "user"
	}

	switch p.Scope {
	case "user":
		c.Deliver(types.NewEvent("settings_updated", map[string]any{
			"setting": p.Setting,
			"value":   p.Value,
			"scope":   p.Scope,
		}))
	case "team":
		if p.TeamID == "" {
			return nil
		}
		s.hub.PublishExcept(types.TeamRoom(p.TeamID), c.UserID,
			types.NewEvent("team_settings_updated", map[string]any{
				"setting":   p.Setting,
				"value":     p.Value,
				"updatedBy": c.UserID,
				"teamId":    p.TeamID,
			}))
	}
	return nil
}
