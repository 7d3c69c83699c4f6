package domain

import "time"

// IdeaEventType 标识 Idea 上发生的变更类型。
type IdeaEventType string

const (
	EventIdeaCreated   IdeaEventType = "idea.created"
	EventIdeaUpdated   IdeaEventType = "idea.updated"
	EventIdeaDeleted   IdeaEventType = "idea.deleted"
	EventIdeaVoted     IdeaEventType = "idea.voted"
	EventIdeaCommented IdeaEventType = "idea.commented"
)

// IdeaEvent 描述一次变更，用于活动日志和实时推送。
type IdeaEvent struct {
	ID            string        `json:"id"`
	IdeaID        string        `json:"ideaId"`
	Type          IdeaEventType `json:"type"`
	ActorID       string        `json:"actorId"`
	ActorName     string        `json:"actorName"`
	Detail        string        `json:"detail,omitempty"`
	UpvoteCount   int           `json:"upvoteCount"`
	DownvoteCount int           `json:"downvoteCount"`
	CommentCount  int           `json:"commentCount"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

// NewIdeaEvent 根据 Idea 当前状态构造事件，idea 可以为 nil（例如删除后）。
func NewIdeaEvent(typ IdeaEventType, ideaID string, actor Identity, idea *Idea, at time.Time) IdeaEvent {
	ev := IdeaEvent{
		IdeaID:     ideaID,
		Type:       typ,
		ActorID:    actor.UserID,
		ActorName:  actor.Username,
		OccurredAt: at,
	}
	if idea != nil {
		ev.UpvoteCount = len(idea.Upvotes)
		ev.DownvoteCount = len(idea.Downvotes)
		ev.CommentCount = len(idea.Comments)
	}
	return ev
}
