package domain

import "slices"

// VoteDirection 是一次投票的方向。
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// VoteState 是某个用户对某个 Idea 的投票状态。
type VoteState int

const (
	VoteNone VoteState = iota
	VoteUpvoted
	VoteDownvoted
)

func (s VoteState) String() string {
	switch s {
	case VoteUpvoted:
		return "upvoted"
	case VoteDownvoted:
		return "downvoted"
	default:
		return "none"
	}
}

// NextVoteState 是投票切换状态机：同方向再投一次即撤销，反方向则转移。
func NextVoteState(current VoteState, dir VoteDirection) VoteState {
	switch dir {
	case VoteUp:
		if current == VoteUpvoted {
			return VoteNone
		}
		return VoteUpvoted
	case VoteDown:
		if current == VoteDownvoted {
			return VoteNone
		}
		return VoteDownvoted
	}
	return current
}

// VoteTransition 记录一次投票前后的状态。
type VoteTransition struct {
	Direction VoteDirection
	From      VoteState
	To        VoteState
}

// Message 返回面向客户端的结果描述。
func (t VoteTransition) Message() string {
	if t.Direction == VoteUp {
		if t.To == VoteUpvoted {
			return "Upvoted successfully"
		}
		return "Upvote removed"
	}
	if t.To == VoteDownvoted {
		return "Downvoted successfully"
	}
	return "Downvote removed"
}

// VoteStateOf 返回 userID 当前的投票状态。
func (i *Idea) VoteStateOf(userID string) VoteState {
	if slices.Contains(i.Upvotes, userID) {
		return VoteUpvoted
	}
	if slices.Contains(i.Downvotes, userID) {
		return VoteDownvoted
	}
	return VoteNone
}

// ApplyVote 在内存中执行一次状态转移，保证 userID 最多出现在一个集合中。
// 持久化层必须以原子操作完成同样的转移，这里只用于计算结果视图。
func (i *Idea) ApplyVote(userID string, dir VoteDirection) VoteTransition {
	from := i.VoteStateOf(userID)
	to := NextVoteState(from, dir)

	i.Upvotes = slices.DeleteFunc(i.Upvotes, func(id string) bool { return id == userID })
	i.Downvotes = slices.DeleteFunc(i.Downvotes, func(id string) bool { return id == userID })
	switch to {
	case VoteUpvoted:
		i.Upvotes = append(i.Upvotes, userID)
	case VoteDownvoted:
		i.Downvotes = append(i.Downvotes, userID)
	}
	return VoteTransition{Direction: dir, From: from, To: to}
}
