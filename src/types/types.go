// Package types defines the wire-level message shapes shared by the hub,
// the gateway handlers, and the bridge.
package types

import (
	"encoding/json"
	"time"
)

// Event is an outbound server→client message. Timestamp is always assigned
// by the server at publish time, never taken from a client.
type Event struct {
	Name      string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent builds an event stamped with the current server time.
func NewEvent(name string, data map[string]any) Event {
	return Event{Name: name, Data: data, Timestamp: time.Now().UTC()}
}

// Frame is an inbound client→server message. The payload is decoded into
// the kind-specific struct selected by Type.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound frame kinds.
const (
	FrameSubscribe      = "subscribe"
	FrameUnsubscribe    = "unsubscribe"
	FrameMonitorInfra   = "monitor_infrastructure"
	FrameMonitorAIJobs  = "monitor_ai_jobs"
	FrameJoinTeam       = "join_team"
	FrameLeaveTeam      = "leave_team"
	FrameTypingStart    = "typing_start"
	FrameTypingStop     = "typing_stop"
	FrameSettingsUpdate = "settings_update"
)

// Logical channels a client may subscribe to.
const (
	ChannelInfrastructure = "infrastructure"
	ChannelAIJobs         = "ai_jobs"
	ChannelNotifications  = "notifications"
	ChannelTeamActivities = "team_activities"
)

// SubscribeFilters narrows a channel subscription.
type SubscribeFilters struct {
	Provider string `json:"provider,omitempty"`
	TeamID   string `json:"teamId,omitempty"`
}

// SubscribePayload is the payload for subscribe frames.
type SubscribePayload struct {
	Channel string           `json:"channel"`
	Filters SubscribeFilters `json:"filters,omitempty"`
}

// UnsubscribePayload is the payload for unsubscribe frames.
type UnsubscribePayload struct {
	Channel string `json:"channel"`
}

// MonitorInfraPayload requests resource- and provider-scoped monitoring.
type MonitorInfraPayload struct {
	ResourceIDs []string `json:"resourceIds,omitempty"`
	Providers   []string `json:"providers,omitempty"`
}

// MonitorAIJobsPayload requests job-type- and priority-scoped monitoring.
type MonitorAIJobsPayload struct {
	JobTypes []string `json:"jobTypes,omitempty"`
	Priority string   `json:"priority,omitempty"`
}

// TeamPayload is the payload for join_team and leave_team frames.
type TeamPayload struct {
	TeamID string `json:"teamId"`
}

// TypingPayload is the payload for typing_start and typing_stop frames.
type TypingPayload struct {
	TeamID  string `json:"teamId"`
	Context string `json:"context,omitempty"`
}

// SettingsUpdatePayload is the payload for settings_update frames.
type SettingsUpdatePayload struct {
	Setting string `json:"setting"`
	Value   any    `json:"value"`
	Scope   string `json:"scope,omitempty"`
	TeamID  string `json:"teamId,omitempty"`
}

// Fixed topic rooms.
const (
	RoomInfrastructureUpdates = "infrastructure_updates"
	RoomAIJobUpdates          = "ai_jobs_updates"
	RoomNotificationUpdates   = "notifications_updates"
)

// Room name prefixes used for bulk-leave semantics.
const (
	TeamRoomPrefix  = "team_"
	InfraRoomPrefix = "infrastructure_"
)

// UserRoom names the private room every connection is enrolled in.
func UserRoom(userID string) string { return "user_" + userID }

// TeamRoom names the room shared by members of a team.
func TeamRoom(teamID string) string { return TeamRoomPrefix + teamID }

// ResourceRoom names the room for a single infrastructure resource.
func ResourceRoom(resourceID string) string { return "resource_" + resourceID }

// ProviderRoom names the room scoped to one cloud provider.
func ProviderRoom(provider string) string { return InfraRoomPrefix + provider }

// AIJobTypeRoom names the room scoped to one AI job type.
func AIJobTypeRoom(jobType string) string { return "ai_jobs_" + jobType }

// AIJobPriorityRoom names the room scoped to one AI job priority.
func AIJobPriorityRoom(priority string) string { return "ai_jobs_priority_" + priority }

// ClientInfo holds metadata about a connected client.
type ClientInfo struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	Rooms       []string  `json:"rooms"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}
