package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SortMethod задаёт порядок сортировки комментариев форума.
type SortMethod int

const (
	// SortHot — по убыванию лайков.
	SortHot SortMethod = iota
	// SortNewest — сначала новые.
	SortNewest
	// SortOldest — сначала старые.
	SortOldest
)

// Thread описывает ветку комментариев Disqus, привязанную к одной странице.
type Thread struct {
	ID             string
	Identifiers    []string
	Title          string
	Link           string
	Feed           string
	Message        string
	Likes          int
	Dislikes       int
	Posts          int
	Forum          string
	RatingsEnabled bool
	IsClosed       bool
}

// ThreadIdentifier собирает составной идентификатор треда: произвольная
// строка плюс числовой идентификатор страницы-владельца.
func ThreadIdentifier(identifier string, pageID int) string {
	return fmt.Sprintf("%s;%d", identifier, pageID)
}

// Identifier возвращает первый идентификатор треда или пустую строку.
func (t *Thread) Identifier() string {
	if len(t.Identifiers) == 0 {
		return ""
	}
	return t.Identifiers[0]
}

// PageID извлекает идентификатор страницы из составного идентификатора треда.
func (t *Thread) PageID() int {
	parts := strings.Split(t.Identifier(), ";")
	if len(parts) < 2 {
		return 0
	}
	id, _ := strconv.Atoi(parts[1])
	return id
}

// Post представляет один комментарий. Parent пуст у корневых комментариев.
type Post struct {
	ID            string
	Parent        string
	Thread        string
	Forum         string
	Message       string
	RawMessage    string
	Likes         int
	Dislikes      int
	Points        int
	NumReports    int
	CreatedAt     time.Time
	EditableUntil time.Time
	Author        *User
	IsSpam        bool
	IsDeleted     bool
	IsApproved    bool
	IsHighlighted bool
	IsFlagged     bool
	IsAtFlagLimit bool
	IsEdited      bool

	// NestingLevel — глубина комментария в дереве ответов, 0 у корневых.
	// Выставляется репозиторием при построении иерархии.
	NestingLevel int

	// ThreadRef заполняется репозиторием при индексации комментариев треда.
	ThreadRef *Thread
}

// IsTopLevel сообщает, является ли комментарий корневым.
func (p *Post) IsTopLevel() bool {
	return p.Parent == ""
}

// Permalink возвращает постоянную ссылку на комментарий.
// Пустая строка, если тред ещё не привязан.
func (p *Post) Permalink() string {
	if p.ThreadRef == nil {
		return ""
	}
	return fmt.Sprintf("%s#comment-%s", p.ThreadRef.Link, p.ID)
}

// User описывает пользователя Disqus; используется и как автор комментария.
type User struct {
	ID                 string
	UserName           string
	Name               string
	AvatarURL          string
	ProfileURL         string
	URL                string
	NumFollowers       int
	NumFollowing       int
	NumPosts           int
	NumLikesReceived   int
	ReputationLabel    string
	JoinedAt           time.Time
	IsPowerContributor bool
	IsPrivate          bool
	IsAnonymous        bool

	// ThreadRating — оценка, выставленная пользователем треду; 0 — не выставлена.
	ThreadRating int
}

// Forum описывает сайт/сообщество Disqus с настройками публикации.
type Forum struct {
	ID                 string
	Name               string
	Description        string
	URL                string
	Founder            string
	Sort               SortMethod
	VotingType         int
	DaysThreadAlive    int
	ModeratorBadgeText string
	CreatedAt          time.Time
	Settings           ForumSettings
}

// ForumSettings хранит настройки форума, влияющие на виджет.
type ForumSettings struct {
	ThreadRatingsEnabled   bool
	ThreadReactionsEnabled bool
	AllowAnonPost          bool
	DisableSocialShare     bool
	AdultContent           bool
	MediaEmbedEnabled      bool
	ValidateAllPosts       bool
}

// VoteResult содержит результат голосования. Delta == 0 означает,
// что Disqus не засчитал голос (например, голос за собственный комментарий).
type VoteResult struct {
	Vote     int
	Delta    int
	Likes    int
	Dislikes int
}

// Session хранит учётные данные аутентифицированного пользователя Disqus.
// Пустая сессия соответствует анонимному посетителю.
type Session struct {
	UserID      string
	AccessToken string
}

// Authenticated сообщает, вошёл ли пользователь в Disqus.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// PostPatch описывает локальное изменение закэшированного комментария
// после подтверждённой записи в API.
type PostPatch interface {
	isPostPatch()
}

// VotePatch перезаписывает счётчики голосов комментария.
type VotePatch struct {
	Likes    int
	Dislikes int
}

func (VotePatch) isPostPatch() {}

// EditPatch перезаписывает текст комментария и, при ненулевом Rating,
// оценку треда у автора.
type EditPatch struct {
	Message    string
	RawMessage string
	Rating     int
}

func (EditPatch) isPostPatch() {}

// ReportReason — причина жалобы на комментарий (https://disqus.com/api/docs/posts/report/).
type ReportReason int

const (
	ReportHarassment ReportReason = iota
	ReportSpam
	ReportInappropriateContent
	ReportThreat
	ReportImpersonation
	ReportPrivateInformation
	ReportDisagree
)

func (r ReportReason) String() string {
	switch r {
	case ReportHarassment:
		return "harassment"
	case ReportSpam:
		return "spam"
	case ReportInappropriateContent:
		return "inappropriate content"
	case ReportThreat:
		return "threat"
	case ReportImpersonation:
		return "impersonation"
	case ReportPrivateInformation:
		return "private information"
	case ReportDisagree:
		return "disagree"
	}
	return "unknown"
}
