package domain

import "context"

// CommentsAPI описывает операции Disqus REST API, доступные ядру виджета.
type CommentsAPI interface {
	GetForum(ctx context.Context, forumID string) (*Forum, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	GetPost(ctx context.Context, postID string) (*Post, error)
	GetThreadPosts(ctx context.Context, threadID string) ([]*Post, error)
	GetUserDetails(ctx context.Context, userID string) (*User, error)
	GetForumModerators(ctx context.Context) ([]*User, error)
	ListFollowing(ctx context.Context, userID string) ([]*User, error)
	IsUserFollowing(ctx context.Context, userID string) (bool, error)

	ResolveOrCreateThread(ctx context.Context, identifier, title, pageURL string, pageID int) (string, error)
	CreatePost(ctx context.Context, message, threadID, parentID string, rating int) (*Post, error)
	UpdatePost(ctx context.Context, postID, message string, rating int) (*Post, error)
	DeletePost(ctx context.Context, postID string) error
	SubmitPostVote(ctx context.Context, postID string, vote int) (VoteResult, error)
	SubmitThreadVote(ctx context.Context, threadID string, vote int) (VoteResult, error)
	ReportPost(ctx context.Context, postID string, reason ReportReason) error
	FollowUser(ctx context.Context, userID string, doFollow bool) error
	SubscribeToThread(ctx context.Context, threadID string, doSubscribe bool) error
	CloseThread(ctx context.Context, threadID string) error
}

// SessionSource возвращает текущую сессию пользователя. Реализуется
// хостовым слоем (например, поверх cookie); пустая сессия — аноним.
type SessionSource interface {
	Session() Session
}

// StaticSession — простейший SessionSource поверх фиксированной сессии.
type StaticSession Session

func (s StaticSession) Session() Session {
	return Session(s)
}
